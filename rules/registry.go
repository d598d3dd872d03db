package rules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ActionHandler performs one action and returns a result record
type ActionHandler func(ctx context.Context, action PendingAction, evalCtx map[string]any) (any, error)

// Registry maps action codes to handlers
type Registry struct {
	handlers map[ActionCode]ActionHandler
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[ActionCode]ActionHandler)}
}

// Register installs or replaces the handler for a code
func (r *Registry) Register(code ActionCode, handler ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[code] = handler
}

// Codes lists the registered codes in lexical order
func (r *Registry) Codes() []ActionCode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]ActionCode, 0, len(r.handlers))
	for code := range r.handlers {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Supports reports whether a handler exists for code
func (r *Registry) Supports(code ActionCode) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[code]
	return ok
}

// Dispatch runs the handler for the action's code. Unknown codes fail
// with UnsupportedActionError.
func (r *Registry) Dispatch(ctx context.Context, action PendingAction, evalCtx map[string]any) (any, error) {
	r.mu.RLock()
	handler, ok := r.handlers[action.Code]
	r.mu.RUnlock()

	if !ok {
		return nil, &UnsupportedActionError{Code: action.Code}
	}
	return handler(ctx, action, evalCtx)
}

// DefaultRegistry registers a handler for every built-in code. Handlers
// describe the effect they stand for; none of them performs I/O.
func DefaultRegistry(engine *Engine) *Registry {
	r := NewRegistry()

	r.Register(ActionSetField, setField)
	r.Register(ActionAddTag, tagHandler("adicionar"))
	r.Register(ActionRemoveTag, tagHandler("remover"))
	r.Register(ActionChangeStatus, changeField("status"))
	r.Register(ActionChangePriority, changeField("prioridade"))
	r.Register(ActionChangeImpact, changeField("impacto"))
	r.Register(ActionChangeUrgency, changeField("urgencia"))
	r.Register(ActionChangeComplexity, changeField("complexidade"))
	r.Register(ActionAssignPM, assign("pm"))
	r.Register(ActionAssignOwner, assign("responsavel"))
	r.Register(ActionSendEmail, sendEmail)
	r.Register(ActionSendNotice, sendNotification)
	r.Register(ActionRequireField, requireField)
	r.Register(ActionValidateField, validateField(engine))
	r.Register(ActionCallWebhook, callWebhook)
	r.Register(ActionCreateTask, createTask)

	return r
}

func setField(_ context.Context, a PendingAction, _ map[string]any) (any, error) {
	return map[string]any{"campo": a.FieldPath, "valor": a.Value}, nil
}

func tagHandler(operation string) ActionHandler {
	return func(_ context.Context, a PendingAction, _ map[string]any) (any, error) {
		tag, ok := a.Value.(string)
		if !ok || tag == "" {
			return nil, fmt.Errorf("tag inválida: %v", a.Value)
		}
		return map[string]any{"operacao": operation, "tag": tag}, nil
	}
}

func changeField(field string) ActionHandler {
	return func(_ context.Context, a PendingAction, _ map[string]any) (any, error) {
		return map[string]any{"campo": field, "valor": a.Value}, nil
	}
}

func assign(role string) ActionHandler {
	return func(_ context.Context, a PendingAction, _ map[string]any) (any, error) {
		return map[string]any{"papel": role, "usuarioId": a.Value}, nil
	}
}

func sendEmail(_ context.Context, a PendingAction, _ map[string]any) (any, error) {
	return map[string]any{
		"enviado":      false,
		"destinatario": a.Config["destinatario"],
		"assunto":      a.Config["assunto"],
		"mensagem":     "envio de email ainda não implementado",
	}, nil
}

func sendNotification(_ context.Context, a PendingAction, _ map[string]any) (any, error) {
	return map[string]any{
		"enviado":  false,
		"conteudo": a.Value,
		"mensagem": "envio de notificação ainda não implementado",
	}, nil
}

func callWebhook(_ context.Context, a PendingAction, _ map[string]any) (any, error) {
	url, _ := a.Config["url"].(string)
	if url == "" {
		return nil, errors.New("configuração do webhook requer url")
	}
	return map[string]any{
		"enviado":  false,
		"url":      url,
		"mensagem": "chamada de webhook ainda não implementada",
	}, nil
}

func requireField(_ context.Context, a PendingAction, _ map[string]any) (any, error) {
	return map[string]any{"campo": a.FieldPath, "obrigatorio": true}, nil
}

func createTask(_ context.Context, a PendingAction, _ map[string]any) (any, error) {
	return map[string]any{"titulo": a.Value, "criada": false}, nil
}

// validateField checks the field's current value. configuracao.expressao,
// when present, is a CEL expression over valor and contexto; otherwise the
// value must not be empty.
func validateField(engine *Engine) ActionHandler {
	return func(_ context.Context, a PendingAction, evalCtx map[string]any) (any, error) {
		value, found := resolvePath(evalCtx, a.FieldPath)

		expression, _ := a.Config["expressao"].(string)
		var valid bool
		if expression == "" {
			valid = !isEmpty(value, found)
		} else {
			if engine == nil {
				return nil, errors.New("validação por expressão indisponível")
			}
			var err error
			if valid, err = engine.Evaluate(expression, value, evalCtx); err != nil {
				return nil, err
			}
		}

		if !valid {
			msg, _ := a.Config["mensagem"].(string)
			if msg == "" {
				msg = fmt.Sprintf("Campo %s inválido", a.FieldPath)
			}
			return nil, errors.New(msg)
		}
		return map[string]any{"campo": a.FieldPath, "valido": true}, nil
	}
}
