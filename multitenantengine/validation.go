package multitenantengine

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/liamcoop/discovery/rules"
)

// Definition limits
const (
	maxNameLength = 200
	maxConditions = 50
	maxActions    = 50
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateRuleDefinition checks the shape of a definition before any catalog lookup.
// Errors wrap rules.ErrValidation.
func ValidateRuleDefinition(def RuleDefinition) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return invalid("nome da regra é obrigatório")
	}
	if n := utf8.RuneCountInString(name); n > maxNameLength {
		return invalid("nome da regra tem %d caracteres, máximo permitido é %d", n, maxNameLength)
	}

	if len(def.Conditions) == 0 {
		return invalid("regra deve ter pelo menos uma condição")
	}
	if len(def.Conditions) > maxConditions {
		return invalid("regra tem %d condições, máximo permitido é %d", len(def.Conditions), maxConditions)
	}
	if len(def.Actions) == 0 {
		return invalid("regra deve ter pelo menos uma ação")
	}
	if len(def.Actions) > maxActions {
		return invalid("regra tem %d ações, máximo permitido é %d", len(def.Actions), maxActions)
	}

	for i, c := range def.Conditions {
		if strings.TrimSpace(c.Field) == "" {
			return invalid("condição %d: campo é obrigatório", i+1)
		}
		if strings.TrimSpace(c.Operator) == "" {
			return invalid("condição %d: operador é obrigatório", i+1)
		}
		switch rules.Logic(c.Logic) {
		case "", rules.LogicAnd, rules.LogicOr:
		default:
			return invalid("condição %d: lógica %q inválida", i+1, c.Logic)
		}
	}
	for i, a := range def.Actions {
		if strings.TrimSpace(a.Type) == "" {
			return invalid("ação %d: tipo é obrigatório", i+1)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", rules.ErrValidation, fmt.Sprintf(format, args...))
}

// validateFieldPath requires a dotted path of identifiers, e.g. demanda.status
func validateFieldPath(path string) error {
	if path == "" {
		return fmt.Errorf("field path cannot be empty")
	}
	for _, segment := range strings.Split(path, ".") {
		if err := validateIdentifier(segment); err != nil {
			return fmt.Errorf("invalid field path %q: %w", path, err)
		}
	}
	return nil
}

// validateIdentifier validates one path segment
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("identifier length %d exceeds maximum of 100 characters", len(name))
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$ (start with letter or underscore, followed by letters, digits, or underscores)")
	}
	if isReservedKeyword(name) {
		return fmt.Errorf("cannot use reserved keyword %q as identifier", name)
	}
	return nil
}

// isReservedKeyword reports CEL keywords
func isReservedKeyword(name string) bool {
	reservedKeywords := map[string]bool{
		"true":  true,
		"false": true,
		"null":  true,

		"if":       true,
		"else":     true,
		"for":      true,
		"while":    true,
		"break":    true,
		"continue": true,
		"return":   true,

		"var":      true,
		"let":      true,
		"const":    true,
		"function": true,

		"in":        true,
		"as":        true,
		"import":    true,
		"package":   true,
		"namespace": true,
		"loop":      true,
		"void":      true,
	}

	return reservedKeywords[name]
}
