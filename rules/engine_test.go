package rules

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	return engine
}

func TestEngineCompileSuccess(t *testing.T) {
	engine := newEngine(t)

	expressions := []string{
		`true`,
		`valor != null`,
		`size(valor) > 3`,
		`valor in ["alta", "media"]`,
		`has(contexto.demanda) && contexto.demanda.prioridade >= 2`,
	}
	for _, expr := range expressions {
		if _, err := engine.Compile(expr); err != nil {
			t.Errorf("Compile(%q) failed: %v", expr, err)
		}
	}
}

func TestEngineCompileError(t *testing.T) {
	engine := newEngine(t)

	testCases := []struct {
		name string
		expr string
	}{
		{"syntax", `valor >`},
		{"undeclared variable", `User.Age > 18`},
		{"non boolean", `"texto"`},
		{"arithmetic result", `1 + 2`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Compile(tc.expr)
			if err == nil {
				t.Fatalf("Compile(%q) should fail", tc.expr)
			}
			if !strings.Contains(err.Error(), "compile error") {
				t.Errorf("error should be descriptive, got: %v", err)
			}
		})
	}
	if engine.Len() != 0 {
		t.Errorf("failed compilations should not be cached, got %d programs", engine.Len())
	}
}

func TestEngineCompileCaching(t *testing.T) {
	engine := newEngine(t)

	for range 3 {
		if _, err := engine.Compile(`valor == "x"`); err != nil {
			t.Fatalf("Compile() failed: %v", err)
		}
	}
	if engine.Len() != 1 {
		t.Errorf("expected one cached program, got %d", engine.Len())
	}
}

func TestEngineEvaluate(t *testing.T) {
	engine := newEngine(t)
	ctx := map[string]any{
		"demanda": map[string]any{"prioridade": 3, "tags": []any{"api"}},
	}

	testCases := []struct {
		name  string
		expr  string
		value any
		want  bool
	}{
		{"string size", `size(valor) > 3`, "Exportar", true},
		{"string size short", `size(valor) > 3`, "ab", false},
		{"null value", `valor == null`, nil, true},
		{"context access", `contexto.demanda.prioridade >= 2`, nil, true},
		{"list membership", `"api" in contexto.demanda.tags`, nil, true},
		{"regex", `valor.matches("^[A-Z]{3}-[0-9]+$")`, "ABC-12", true},
		{"dyn non bool is false", `contexto.demanda.prioridade`, nil, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := engine.Evaluate(tc.expr, tc.value, ctx)
			if err != nil {
				t.Fatalf("Evaluate() failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("Evaluate() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEngineEvaluateRuntimeError(t *testing.T) {
	engine := newEngine(t)

	_, err := engine.Evaluate(`contexto.demanda.ausente == 1`, nil, map[string]any{"demanda": map[string]any{}})
	if err == nil || !strings.Contains(err.Error(), "evaluation error") {
		t.Errorf("expected evaluation error, got %v", err)
	}

	if _, err := engine.Evaluate(`size(valor) > 0`, "x", nil); err != nil {
		t.Errorf("nil context should be accepted: %v", err)
	}
}

func TestEngineConcurrentCompileAndEvaluate(t *testing.T) {
	engine := newEngine(t)

	var wg sync.WaitGroup
	numGoroutines := 10
	iterations := 50

	for i := range numGoroutines {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			for j := range iterations {
				expr := fmt.Sprintf(`size(valor) > %d`, (id+j)%5)
				if _, err := engine.Evaluate(expr, "abcdef", nil); err != nil {
					t.Errorf("concurrent Evaluate() failed: %v", err)
				}
			}
		}(i)
	}

	wg.Wait()

	if engine.Len() != 5 {
		t.Errorf("expected 5 cached programs, got %d", engine.Len())
	}
}
