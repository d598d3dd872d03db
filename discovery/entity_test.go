package discovery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/liamcoop/discovery/catalog"
	"github.com/liamcoop/discovery/status"
)

// statuses resolves statuses from a tenant's default catalog
type statuses struct {
	t    *testing.T
	repo *catalog.InMemoryRepository
}

func newStatuses(t *testing.T, tenantID string) *statuses {
	t.Helper()
	items, err := catalog.DefaultSeed(tenantID)
	if err != nil {
		t.Fatalf("DefaultSeed failed: %v", err)
	}
	return &statuses{t: t, repo: catalog.NewInMemoryRepository(items...)}
}

func (s *statuses) get(m *status.Machine, tenantID, slug string) status.Status {
	s.t.Helper()
	item, err := s.repo.GetRequiredItem(context.Background(), catalog.Lookup{
		TenantID: tenantID,
		Category: m.Category(),
		Slug:     slug,
	})
	if err != nil {
		s.t.Fatalf("GetRequiredItem(%s/%s) failed: %v", m.Category(), slug, err)
	}
	st, err := m.FromCatalogItem(item)
	if err != nil {
		s.t.Fatalf("FromCatalogItem(%s) failed: %v", slug, err)
	}
	return st
}

func TestHypothesisLifecycle(t *testing.T) {
	s := newStatuses(t, "tenant-1")
	st := func(slug string) status.Status { return s.get(status.Hypothesis, "tenant-1", slug) }

	h, err := NewHypothesis(HypothesisProps{
		TenantID:  "tenant-1",
		Statement: "Usuários querem exportar relatórios",
		Status:    st(status.HypothesisPendente),
	})
	if err != nil {
		t.Fatalf("NewHypothesis failed: %v", err)
	}
	if h.ID() == "" {
		t.Error("expected a generated id")
	}

	err = h.Validate(st(status.HypothesisValidada), "ok")
	if err == nil {
		t.Fatal("validating a pending hypothesis should fail")
	}
	if !strings.HasSuffix(err.Error(), "Esperado em_teste, recebido pendente") {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, status.ErrInvalidStatus) {
		t.Errorf("guard error should match ErrInvalidStatus: %v", err)
	}

	before := h.UpdatedAt()
	time.Sleep(time.Millisecond)
	if err := h.StartTest(st(status.HypothesisEmTeste)); err != nil {
		t.Fatalf("StartTest failed: %v", err)
	}
	if h.Status().Slug() != status.HypothesisEmTeste {
		t.Errorf("status = %s, want em_teste", h.Status().Slug())
	}
	if !h.UpdatedAt().After(before) {
		t.Error("UpdatedAt was not bumped")
	}

	if err := h.Validate(st(status.HypothesisValidada), "conversão +12%"); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !h.IsFinal() || h.Result() != "conversão +12%" {
		t.Errorf("final=%v result=%q", h.IsFinal(), h.Result())
	}
	if err := h.Archive(st(status.HypothesisArquivada)); err == nil {
		t.Error("archiving a validated hypothesis should fail")
	}
}

func TestTransitionRequiresMatchingTarget(t *testing.T) {
	s := newStatuses(t, "tenant-1")
	st := func(slug string) status.Status { return s.get(status.Hypothesis, "tenant-1", slug) }

	h, err := NewHypothesis(HypothesisProps{TenantID: "tenant-1", Statement: "x", Status: st(status.HypothesisPendente)})
	if err != nil {
		t.Fatalf("NewHypothesis failed: %v", err)
	}

	err = h.StartTest(st(status.HypothesisValidada))
	if err == nil || !strings.Contains(err.Error(), "Esperado em_teste, recebido validada") {
		t.Errorf("wrong target: got %v", err)
	}
	if h.Status().Slug() != status.HypothesisPendente {
		t.Errorf("status changed on failure: %s", h.Status().Slug())
	}
}

func TestStatusMustBelongToTenantAndMachine(t *testing.T) {
	s := newStatuses(t, "tenant-1")
	other := newStatuses(t, "tenant-2")

	_, err := NewHypothesis(HypothesisProps{
		TenantID:  "tenant-1",
		Statement: "x",
		Status:    other.get(status.Hypothesis, "tenant-2", status.HypothesisPendente),
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("foreign tenant status: got %v, want ErrValidation", err)
	}

	_, err = NewHypothesis(HypothesisProps{
		TenantID:  "tenant-1",
		Statement: "x",
		Status:    s.get(status.Insight, "tenant-1", status.InsightRascunho),
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("foreign machine status: got %v, want ErrValidation", err)
	}

	_, err = NewHypothesis(HypothesisProps{TenantID: "tenant-1", Statement: "x"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("missing status: got %v, want ErrValidation", err)
	}

	_, err = NewHypothesis(HypothesisProps{TenantID: "tenant-1", Status: s.get(status.Hypothesis, "tenant-1", status.HypothesisPendente)})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("missing statement: got %v, want ErrValidation", err)
	}

	h, err := NewHypothesis(HypothesisProps{
		TenantID:  "tenant-1",
		Statement: "x",
		Status:    s.get(status.Hypothesis, "tenant-1", status.HypothesisPendente),
	})
	if err != nil {
		t.Fatalf("NewHypothesis failed: %v", err)
	}
	if err := h.StartTest(other.get(status.Hypothesis, "tenant-2", status.HypothesisEmTeste)); !errors.Is(err, ErrValidation) {
		t.Errorf("transition to foreign tenant status: got %v", err)
	}
}

func TestDiscoveryLifecycle(t *testing.T) {
	s := newStatuses(t, "tenant-1")
	st := func(slug string) status.Status { return s.get(status.Discovery, "tenant-1", slug) }

	d, err := NewDiscovery(DiscoveryProps{TenantID: "tenant-1", Title: "Exportação", Status: st(status.DiscoveryEmPesquisa)})
	if err != nil {
		t.Fatalf("NewDiscovery failed: %v", err)
	}

	if err := d.Decide(st(status.DiscoveryDecidido), "seguir"); err == nil {
		t.Error("deciding before validation should fail")
	}
	if err := d.StartValidation(st(status.DiscoveryValidando)); err != nil {
		t.Fatalf("StartValidation failed: %v", err)
	}
	if err := d.Decide(st(status.DiscoveryDecidido), " "); !errors.Is(err, ErrValidation) {
		t.Errorf("blank decision: got %v, want ErrValidation", err)
	}
	if err := d.Decide(st(status.DiscoveryDecidido), "seguir"); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if err := d.Close(st(status.DiscoveryFechado)); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := d.Cancel(st(status.DiscoveryCancelado), "x"); err == nil {
		t.Error("cancelling a closed discovery should fail")
	}
	if d.Decision() != "seguir" || !d.IsFinal() {
		t.Errorf("decision=%q final=%v", d.Decision(), d.IsFinal())
	}
}

func TestResearchGuards(t *testing.T) {
	s := newStatuses(t, "tenant-1")
	st := func(slug string) status.Status { return s.get(status.Research, "tenant-1", slug) }

	r, err := NewResearch(ResearchProps{TenantID: "tenant-1", Title: "Entrevistas", Status: st(status.ResearchPlanejada)})
	if err != nil {
		t.Fatalf("NewResearch failed: %v", err)
	}

	if _, err := r.AddInterview(Interview{Participant: "Ana"}); err != nil {
		t.Errorf("interview while planned: %v", err)
	}
	if err := r.Complete(st(status.ResearchConcluida), "resumo"); !errors.Is(err, status.ErrInvalidStatus) {
		t.Errorf("complete while planned: got %v", err)
	}
	if err := r.Start(st(status.ResearchEmAndamento)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := r.AddInterview(Interview{}); !errors.Is(err, ErrValidation) {
		t.Errorf("interview without participant: got %v", err)
	}
	iv, err := r.AddInterview(Interview{Participant: "Bruno"})
	if err != nil {
		t.Fatalf("AddInterview failed: %v", err)
	}
	if iv.ID == "" || iv.ConductedAt.IsZero() {
		t.Errorf("interview defaults not filled: %+v", iv)
	}
	if err := r.Complete(st(status.ResearchConcluida), "resumo"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if _, err := r.AddInterview(Interview{Participant: "Carla"}); !errors.Is(err, status.ErrInvalidStatus) {
		t.Errorf("interview after completion: got %v", err)
	}
	if got := len(r.Interviews()); got != 2 {
		t.Errorf("interviews = %d, want 2", got)
	}
}

func TestExperimentLifecycle(t *testing.T) {
	s := newStatuses(t, "tenant-1")
	st := func(slug string) status.Status { return s.get(status.Experiment, "tenant-1", slug) }

	e, err := NewExperiment(ExperimentProps{TenantID: "tenant-1", Name: "A/B export", Status: st(status.ExperimentPlanejado)})
	if err != nil {
		t.Fatalf("NewExperiment failed: %v", err)
	}

	if err := e.Finish(st(status.ExperimentConcluido), nil); !errors.Is(err, status.ErrInvalidStatus) {
		t.Errorf("finish before start: got %v", err)
	}
	if err := e.StartExecution(st(status.ExperimentEmExecucao)); err != nil {
		t.Fatalf("StartExecution failed: %v", err)
	}
	if e.StartedAt().IsZero() {
		t.Error("StartedAt not set")
	}
	if err := e.StartExecution(st(status.ExperimentEmExecucao)); err == nil {
		t.Error("starting twice should fail")
	}

	results := map[string]any{"conversao": 0.12}
	if err := e.Finish(st(status.ExperimentConcluido), results); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	results["conversao"] = 0.5
	if got := e.Results()["conversao"]; got != 0.12 {
		t.Errorf("results were not copied: %v", got)
	}
}

func TestInsightLifecycle(t *testing.T) {
	s := newStatuses(t, "tenant-1")
	st := func(slug string) status.Status { return s.get(status.Insight, "tenant-1", slug) }

	i, err := NewInsight(InsightProps{TenantID: "tenant-1", Description: "Relatórios importam", Status: st(status.InsightRascunho)})
	if err != nil {
		t.Fatalf("NewInsight failed: %v", err)
	}
	if err := i.Refute(st(status.InsightRefutado)); err == nil {
		t.Error("refuting a draft should fail")
	}
	if err := i.SubmitForValidation(st(status.InsightEmValidacao)); err != nil {
		t.Fatalf("SubmitForValidation failed: %v", err)
	}
	if err := i.Refute(st(status.InsightRefutado)); err != nil {
		t.Fatalf("Refute failed: %v", err)
	}
	if !i.IsFinal() || i.IsActive() {
		t.Errorf("refuted insight: final=%v active=%v", i.IsFinal(), i.IsActive())
	}
}

func TestDemandFollowsCatalogTransitions(t *testing.T) {
	s := newStatuses(t, "tenant-1")
	st := func(slug string) status.Status { return s.get(status.Demand, "tenant-1", slug) }

	d, err := NewDemand(DemandProps{
		TenantID: "tenant-1",
		Title:    "Exportar CSV",
		Tags:     []string{"relatorios"},
		Status:   st(status.DemandNova),
	})
	if err != nil {
		t.Fatalf("NewDemand failed: %v", err)
	}

	if err := d.Approve(st(status.DemandAprovada)); !errors.Is(err, status.ErrInvalidStatus) {
		t.Errorf("approve a new demand: got %v", err)
	}
	if err := d.StartTriage(st(status.DemandEmTriagem)); err != nil {
		t.Fatalf("StartTriage failed: %v", err)
	}
	if err := d.Reject(st(status.DemandRejeitada), ""); !errors.Is(err, ErrValidation) {
		t.Errorf("reject without reason: got %v", err)
	}
	if err := d.Reject(st(status.DemandRejeitada), "fora do escopo"); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if err := d.Archive(st(status.DemandArquivada)); err == nil {
		t.Error("rejected demand has no allowed transitions")
	}

	demanda := d.RuleContext()["demanda"].(map[string]any)
	if demanda["status"] != "REJEITADO" {
		t.Errorf("context status = %v, want REJEITADO", demanda["status"])
	}
	if tags := demanda["tags"].([]any); len(tags) != 1 || tags[0] != "relatorios" {
		t.Errorf("context tags = %v", tags)
	}
}

func TestDemandTenantMetadataWidensTransitions(t *testing.T) {
	item := func(slug string, metadata map[string]any) *catalog.Item {
		return catalog.MustNewItem(catalog.Props{
			ID:           "demand-" + slug,
			TenantID:     "tenant-9",
			CategorySlug: catalog.CategoryDemandStatus,
			Slug:         slug,
			Label:        slug,
			Active:       true,
			Metadata:     metadata,
		})
	}
	nova, err := status.Demand.FromCatalogItem(item(status.DemandNova, map[string]any{
		"allowedTransitions": []any{"aprovada"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	aprovada, err := status.Demand.FromCatalogItem(item(status.DemandAprovada, nil))
	if err != nil {
		t.Fatal(err)
	}

	d, err := NewDemand(DemandProps{TenantID: "tenant-9", Title: "Fast track", Status: nova})
	if err != nil {
		t.Fatalf("NewDemand failed: %v", err)
	}
	if err := d.Approve(aprovada); err != nil {
		t.Errorf("tenant allows nova -> aprovada: %v", err)
	}
}

func TestDemandAccessorsMatchRuleContext(t *testing.T) {
	s := newStatuses(t, "tenant-1")

	d, err := NewDemand(DemandProps{
		TenantID:   "tenant-1",
		Title:      "Integração com ERP",
		Priority:   "alta",
		Impact:     "medio",
		Urgency:    "baixa",
		Complexity: "alta",
		OwnerID:    "user-1",
		PMID:       "pm-1",
		Status:     s.get(status.Demand, "tenant-1", status.DemandNova),
	})
	if err != nil {
		t.Fatalf("NewDemand failed: %v", err)
	}

	demanda := d.RuleContext()["demanda"].(map[string]any)
	testCases := []struct {
		key  string
		got  string
		want string
	}{
		{"prioridade", d.Priority(), "alta"},
		{"impacto", d.Impact(), "medio"},
		{"urgencia", d.Urgency(), "baixa"},
		{"complexidade", d.Complexity(), "alta"},
		{"responsavelId", d.OwnerID(), "user-1"},
		{"pmId", d.PMID(), "pm-1"},
	}
	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("accessor = %q, want %q", tc.got, tc.want)
			}
			if demanda[tc.key] != tc.want {
				t.Errorf("RuleContext()[%s] = %v, want %q", tc.key, demanda[tc.key], tc.want)
			}
		})
	}
}
