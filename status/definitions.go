package status

import "github.com/liamcoop/discovery/catalog"

// Discovery statuses
const (
	DiscoveryEmPesquisa = "em_pesquisa"
	DiscoveryValidando  = "validando"
	DiscoveryDecidido   = "decidido"
	DiscoveryFechado    = "fechado"
	DiscoveryCancelado  = "cancelado"
)

// Hypothesis statuses
const (
	HypothesisPendente  = "pendente"
	HypothesisEmTeste   = "em_teste"
	HypothesisValidada  = "validada"
	HypothesisRefutada  = "refutada"
	HypothesisArquivada = "arquivada"
)

// Research statuses
const (
	ResearchPlanejada   = "planejada"
	ResearchEmAndamento = "em_andamento"
	ResearchConcluida   = "concluida"
	ResearchCancelada   = "cancelada"
)

// Experiment statuses
const (
	ExperimentPlanejado  = "planejado"
	ExperimentEmExecucao = "em_execucao"
	ExperimentConcluido  = "concluido"
	ExperimentCancelado  = "cancelado"
)

// Insight statuses
const (
	InsightRascunho    = "rascunho"
	InsightEmValidacao = "em_validacao"
	InsightValidado    = "validado"
	InsightRefutado    = "refutado"
)

// Demand statuses
const (
	DemandNova      = "nova"
	DemandEmTriagem = "em_triagem"
	DemandAprovada  = "aprovada"
	DemandRejeitada = "rejeitada"
	DemandArquivada = "arquivada"
)

var (
	Discovery = MustNewMachine(Definition{
		Entity:   "discovery",
		Category: catalog.CategoryDiscoveryStatus,
		States:   []string{DiscoveryEmPesquisa, DiscoveryValidando, DiscoveryDecidido, DiscoveryFechado, DiscoveryCancelado},
		Active:   []string{DiscoveryEmPesquisa, DiscoveryValidando, DiscoveryDecidido},
		Terminal: []string{DiscoveryFechado, DiscoveryCancelado},
		Transitions: map[string][]string{
			DiscoveryEmPesquisa: {DiscoveryValidando, DiscoveryCancelado},
			DiscoveryValidando:  {DiscoveryDecidido, DiscoveryCancelado},
			DiscoveryDecidido:   {DiscoveryFechado, DiscoveryCancelado},
		},
	})

	Hypothesis = MustNewMachine(Definition{
		Entity:   "hipótese",
		Category: catalog.CategoryHypothesisStatus,
		States:   []string{HypothesisPendente, HypothesisEmTeste, HypothesisValidada, HypothesisRefutada, HypothesisArquivada},
		Active:   []string{HypothesisPendente, HypothesisEmTeste},
		Terminal: []string{HypothesisValidada, HypothesisRefutada, HypothesisArquivada},
		Transitions: map[string][]string{
			HypothesisPendente: {HypothesisEmTeste, HypothesisArquivada},
			HypothesisEmTeste:  {HypothesisValidada, HypothesisRefutada, HypothesisArquivada},
		},
	})

	Research = MustNewMachine(Definition{
		Entity:   "pesquisa",
		Category: catalog.CategoryResearchStatus,
		States:   []string{ResearchPlanejada, ResearchEmAndamento, ResearchConcluida, ResearchCancelada},
		Active:   []string{ResearchPlanejada, ResearchEmAndamento},
		Terminal: []string{ResearchConcluida, ResearchCancelada},
		Transitions: map[string][]string{
			ResearchPlanejada:   {ResearchEmAndamento, ResearchCancelada},
			ResearchEmAndamento: {ResearchConcluida, ResearchCancelada},
		},
		Guards: map[Guard][]string{
			GuardAddInterview: {ResearchPlanejada, ResearchEmAndamento},
			GuardFinish:       {ResearchEmAndamento},
		},
	})

	Experiment = MustNewMachine(Definition{
		Entity:   "experimento",
		Category: catalog.CategoryExperimentStatus,
		States:   []string{ExperimentPlanejado, ExperimentEmExecucao, ExperimentConcluido, ExperimentCancelado},
		Active:   []string{ExperimentPlanejado, ExperimentEmExecucao},
		Terminal: []string{ExperimentConcluido, ExperimentCancelado},
		Transitions: map[string][]string{
			ExperimentPlanejado:  {ExperimentEmExecucao, ExperimentCancelado},
			ExperimentEmExecucao: {ExperimentConcluido, ExperimentCancelado},
		},
		Guards: map[Guard][]string{
			GuardStartExecution: {ExperimentPlanejado},
			GuardFinish:         {ExperimentEmExecucao},
		},
	})

	Insight = MustNewMachine(Definition{
		Entity:   "insight",
		Category: catalog.CategoryInsightStatus,
		States:   []string{InsightRascunho, InsightEmValidacao, InsightValidado, InsightRefutado},
		Active:   []string{InsightRascunho, InsightEmValidacao},
		Terminal: []string{InsightValidado, InsightRefutado},
		Transitions: map[string][]string{
			InsightRascunho:    {InsightEmValidacao},
			InsightEmValidacao: {InsightValidado, InsightRefutado},
		},
	})

	// Demand is the only machine whose transitions tenants can reshape
	// through metadata.allowedTransitions
	Demand = MustNewMachine(Definition{
		Entity:   "demanda",
		Category: catalog.CategoryDemandStatus,
		States:   []string{DemandNova, DemandEmTriagem, DemandAprovada, DemandRejeitada, DemandArquivada},
		Active:   []string{DemandNova, DemandEmTriagem, DemandAprovada},
		Terminal: []string{DemandRejeitada, DemandArquivada},
		Transitions: map[string][]string{
			DemandNova:      {DemandEmTriagem, DemandArquivada},
			DemandEmTriagem: {DemandAprovada, DemandRejeitada, DemandArquivada},
			DemandAprovada:  {DemandArquivada},
		},
		MetadataDriven: true,
	})
)

// Machines lists every machine by catalog category
var Machines = map[string]*Machine{
	Discovery.Category():  Discovery,
	Hypothesis.Category(): Hypothesis,
	Research.Category():   Research,
	Experiment.Category(): Experiment,
	Insight.Category():    Insight,
	Demand.Category():     Demand,
}

// ForCategory returns the machine owning a catalog category
func ForCategory(category string) (*Machine, bool) {
	m, ok := Machines[category]
	return m, ok
}
