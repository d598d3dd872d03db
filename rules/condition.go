package rules

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/liamcoop/discovery/catalog"
)

// OperatorCode identifies a comparison operator. It comes from the operator
// item's legacy value, upper-cased.
type OperatorCode string

const (
	OpEqual          OperatorCode = "IGUAL"
	OpNotEqual       OperatorCode = "DIFERENTE"
	OpContains       OperatorCode = "CONTEM"
	OpNotContains    OperatorCode = "NAO_CONTEM"
	OpGreater        OperatorCode = "MAIOR_QUE"
	OpLess           OperatorCode = "MENOR_QUE"
	OpGreaterOrEqual OperatorCode = "MAIOR_OU_IGUAL"
	OpLessOrEqual    OperatorCode = "MENOR_OU_IGUAL"
	OpIn             OperatorCode = "EM"
	OpNotIn          OperatorCode = "NAO_EM"
	OpEmpty          OperatorCode = "VAZIO"
	OpNotEmpty       OperatorCode = "NAO_VAZIO"
)

var supportedOperators = map[OperatorCode]struct{}{
	OpEqual: {}, OpNotEqual: {}, OpContains: {}, OpNotContains: {},
	OpGreater: {}, OpLess: {}, OpGreaterOrEqual: {}, OpLessOrEqual: {},
	OpIn: {}, OpNotIn: {}, OpEmpty: {}, OpNotEmpty: {},
}

// Logic is the connective stored with a condition. Conditions are always
// combined with AND; the value is kept for round-trips and display.
type Logic string

const (
	LogicAnd Logic = "E"
	LogicOr  Logic = "OU"
)

// ConditionProps builds a Condition
type ConditionProps struct {
	Field    *catalog.Item
	Operator *catalog.Item
	Value    any
	Logic    Logic
}

// Condition is one predicate over a context field
type Condition struct {
	field    *catalog.Item
	operator *catalog.Item
	code     OperatorCode
	path     string
	value    any
	logic    Logic
}

// NewCondition validates the catalog items and the value requirement of the operator
func NewCondition(p ConditionProps) (*Condition, error) {
	if p.Field == nil {
		return nil, fmt.Errorf("%w: campo da condição é obrigatório", ErrValidation)
	}
	if err := p.Field.EnsureCategory(catalog.CategoryRuleFields); err != nil {
		return nil, err
	}
	if p.Operator == nil {
		return nil, fmt.Errorf("%w: operador da condição é obrigatório", ErrValidation)
	}
	if err := p.Operator.EnsureCategory(catalog.CategoryRuleOperators); err != nil {
		return nil, err
	}

	code := OperatorCode(strings.ToUpper(p.Operator.LegacyValue()))
	if _, ok := supportedOperators[code]; !ok {
		return nil, fmt.Errorf("%w: Operador não suportado: %s", ErrUnsupportedOperator, code)
	}

	logic := p.Logic
	if logic == "" {
		logic = LogicAnd
	}
	if logic != LogicAnd && logic != LogicOr {
		return nil, fmt.Errorf("%w: lógica inválida %q", ErrValidation, logic)
	}

	if p.Operator.Metadata().RequiresValueOr(true) && isMissing(p.Value) {
		return nil, fmt.Errorf("%w: valor é obrigatório para o operador %s", ErrValidation, code)
	}

	path := p.Field.Metadata().Path
	if path == "" {
		path = p.Field.Slug()
	}

	return &Condition{
		field:    p.Field,
		operator: p.Operator,
		code:     code,
		path:     path,
		value:    p.Value,
		logic:    logic,
	}, nil
}

func (c *Condition) Field() *catalog.Item       { return c.field }
func (c *Condition) Operator() *catalog.Item    { return c.operator }
func (c *Condition) OperatorCode() OperatorCode { return c.code }
func (c *Condition) FieldPath() string          { return c.path }
func (c *Condition) Value() any                 { return c.value }
func (c *Condition) Logic() Logic               { return c.logic }

// Evaluate resolves the field path in evalCtx and applies the operator
func (c *Condition) Evaluate(evalCtx map[string]any) bool {
	actual, found := resolvePath(evalCtx, c.path)

	switch c.code {
	case OpEqual:
		return strictEqual(actual, found, c.value)
	case OpNotEqual:
		return !strictEqual(actual, found, c.value)
	case OpContains:
		return strings.Contains(lowerString(actual, found), lowerString(c.value, true))
	case OpNotContains:
		return !strings.Contains(lowerString(actual, found), lowerString(c.value, true))
	case OpGreater:
		return toNumber(actual, found) > toNumber(c.value, true)
	case OpLess:
		return toNumber(actual, found) < toNumber(c.value, true)
	case OpGreaterOrEqual:
		return toNumber(actual, found) >= toNumber(c.value, true)
	case OpLessOrEqual:
		return toNumber(actual, found) <= toNumber(c.value, true)
	case OpIn:
		list, ok := asSlice(c.value)
		return ok && containsValue(list, actual, found)
	case OpNotIn:
		// a non-list value never contains anything
		list, ok := asSlice(c.value)
		return !ok || !containsValue(list, actual, found)
	case OpEmpty:
		return isEmpty(actual, found)
	case OpNotEmpty:
		return !isEmpty(actual, found)
	default:
		return false
	}
}

// resolvePath walks a dotted path through nested maps. found is false as soon
// as a segment is missing or the current value is not a map.
func resolvePath(evalCtx map[string]any, path string) (any, bool) {
	var current any = evalCtx
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func isMissing(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// strictEqual compares scalars by value. Numbers compare numerically whatever
// their Go type; lists and maps never compare equal. An unresolved field only
// equals an absent value.
func strictEqual(actual any, found bool, expected any) bool {
	if !found {
		return expected == nil
	}
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	if a, ok := numeric(actual); ok {
		b, ok := numeric(expected)
		return ok && a == b
	}
	switch a := actual.(type) {
	case string:
		b, ok := expected.(string)
		return ok && a == b
	case bool:
		b, ok := expected.(bool)
		return ok && a == b
	}
	return false
}

func containsValue(list []any, actual any, found bool) bool {
	if !found {
		return false
	}
	for _, candidate := range list {
		if strictEqual(actual, true, candidate) {
			return true
		}
	}
	return false
}

func isEmpty(v any, found bool) bool {
	if !found || v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	if list, ok := asSlice(v); ok {
		return len(list) == 0
	}
	return false
}

// lowerString renders a value the way string concatenation would, lower-cased.
// Unresolved and nil values render as "".
func lowerString(v any, found bool) string {
	if !found || v == nil {
		return ""
	}
	return strings.ToLower(stringify(v))
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if f, ok := numeric(v); ok {
		return formatNumber(f)
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case map[string]any:
		return "[object Object]"
	}
	if list, ok := asSlice(v); ok {
		parts := make([]string, len(list))
		for i, elem := range list {
			parts[i] = stringify(elem)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// toNumber coerces like Number(): nil and "" are 0, unresolved and
// unparseable values are NaN, which fails every comparison
func toNumber(v any, found bool) float64 {
	if !found {
		return math.NaN()
	}
	if v == nil {
		return 0
	}
	if f, ok := numeric(v); ok {
		return f
	}
	switch val := v.(type) {
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	if list, ok := asSlice(v); ok {
		switch len(list) {
		case 0:
			return 0
		case 1:
			return toNumber(list[0], true)
		}
	}
	return math.NaN()
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// asSlice accepts []any as decoded from JSON plus any other Go slice or array
func asSlice(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		// []byte is a string, not a list
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
