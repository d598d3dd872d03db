package status

import (
	"errors"
	"fmt"
	"strings"

	"github.com/liamcoop/discovery/catalog"
)

var (
	// ErrUnknownStatus is returned when a catalog item's slug is not a state of the machine
	ErrUnknownStatus = errors.New("unknown status")

	// ErrInvalidStatus is returned by the transition guards
	ErrInvalidStatus = errors.New("invalid status")
)

// Guard names a state-dependent capability such as adding interviews
type Guard string

const (
	GuardAddInterview   Guard = "add_interview"
	GuardStartExecution Guard = "start_execution"
	GuardFinish         Guard = "finish"
)

// Definition configures a Machine
type Definition struct {
	// Entity is the human label used in messages, e.g. "hipótese"
	Entity string

	// Category is the catalog category the statuses live in
	Category string

	// States lists every slug in lifecycle order; the first one is the initial state
	States []string

	// Active and Terminal classify states when item metadata doesn't override
	Active   []string
	Terminal []string

	// Transitions maps a source slug to its legal target slugs
	Transitions map[string][]string

	// Guards maps a capability to the slugs in which it is allowed
	Guards map[Guard][]string

	// MetadataDriven machines consult metadata.allowedTransitions before Transitions
	MetadataDriven bool
}

// Machine is one finite-state machine over catalog-backed statuses
type Machine struct {
	entity         string
	category       string
	states         []string
	valid          map[string]struct{}
	active         map[string]struct{}
	terminal       map[string]struct{}
	transitions    map[string]map[string]struct{}
	guards         map[Guard]map[string]struct{}
	metadataDriven bool
}

// NewMachine validates a definition: every slug it mentions must be a declared state
func NewMachine(def Definition) (*Machine, error) {
	if def.Category == "" || len(def.States) == 0 {
		return nil, fmt.Errorf("status machine %q requires a category and states", def.Entity)
	}

	m := &Machine{
		entity:         def.Entity,
		category:       def.Category,
		states:         append([]string(nil), def.States...),
		valid:          toSet(def.States...),
		active:         toSet(def.Active...),
		terminal:       toSet(def.Terminal...),
		transitions:    make(map[string]map[string]struct{}, len(def.Transitions)),
		guards:         make(map[Guard]map[string]struct{}, len(def.Guards)),
		metadataDriven: def.MetadataDriven,
	}

	check := func(where string, slugs ...string) error {
		for _, s := range slugs {
			if _, ok := m.valid[s]; !ok {
				return fmt.Errorf("status machine %q: %s references undeclared state %q", def.Entity, where, s)
			}
		}
		return nil
	}
	if err := check("active", def.Active...); err != nil {
		return nil, err
	}
	if err := check("terminal", def.Terminal...); err != nil {
		return nil, err
	}
	for from, targets := range def.Transitions {
		if err := check("transitions", from); err != nil {
			return nil, err
		}
		if err := check("transitions from "+from, targets...); err != nil {
			return nil, err
		}
		if _, final := m.terminal[from]; final && len(targets) > 0 {
			return nil, fmt.Errorf("status machine %q: terminal state %q cannot have transitions", def.Entity, from)
		}
		m.transitions[from] = toSet(targets...)
	}
	for guard, slugs := range def.Guards {
		if err := check("guard "+string(guard), slugs...); err != nil {
			return nil, err
		}
		m.guards[guard] = toSet(slugs...)
	}

	return m, nil
}

// MustNewMachine is NewMachine for package-level definitions
func MustNewMachine(def Definition) *Machine {
	m, err := NewMachine(def)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Machine) Entity() string   { return m.entity }
func (m *Machine) Category() string { return m.category }

// States returns the declared slugs in lifecycle order
func (m *Machine) States() []string {
	return append([]string(nil), m.states...)
}

// Initial returns the first declared state
func (m *Machine) Initial() string {
	return m.states[0]
}

// Knows reports whether slug is a state of the machine
func (m *Machine) Knows(slug string) bool {
	_, ok := m.valid[slug]
	return ok
}

// Allows reports whether the static table permits from -> to
func (m *Machine) Allows(from, to string) bool {
	_, ok := m.transitions[from][to]
	return ok
}

// FromCatalogItem binds a catalog item to the machine.
// The item must be in the machine's category and its slug must be a known state.
func (m *Machine) FromCatalogItem(item *catalog.Item) (Status, error) {
	if item == nil {
		return Status{}, fmt.Errorf("%w: status de %s é obrigatório", catalog.ErrValidation, m.entity)
	}
	if err := item.EnsureCategory(m.category); err != nil {
		return Status{}, err
	}
	if !m.Knows(item.Slug()) {
		return Status{}, fmt.Errorf("%w: %q não é um status de %s", ErrUnknownStatus, item.Slug(), m.entity)
	}
	return Status{item: item, machine: m}, nil
}

// Status is a catalog item bound to a Machine
type Status struct {
	item    *catalog.Item
	machine *Machine
}

// Item returns the backing catalog item
func (s Status) Item() *catalog.Item { return s.item }

// Slug returns the state slug, empty for the zero Status
func (s Status) Slug() string {
	if s.item == nil {
		return ""
	}
	return s.item.Slug()
}

// Machine returns the machine the status belongs to
func (s Status) Machine() *Machine { return s.machine }

// IsZero reports whether the status was never bound
func (s Status) IsZero() bool { return s.item == nil }

// Equals compares the backing items by identity
func (s Status) Equals(other Status) bool {
	return s.item.Equals(other.item)
}

// IsActive prefers metadata.isActive over the machine's classification.
// A zero Status is neither active nor final.
func (s Status) IsActive() bool {
	if s.item == nil {
		return false
	}
	if v := s.item.Metadata().IsActive; v != nil {
		return *v
	}
	_, ok := s.machine.active[s.Slug()]
	return ok
}

// IsFinal prefers metadata.isFinal over the machine's classification
func (s Status) IsFinal() bool {
	if s.item == nil {
		return false
	}
	if v := s.item.Metadata().IsFinal; v != nil {
		return *v
	}
	_, ok := s.machine.terminal[s.Slug()]
	return ok
}

// CanTransitionTo checks target against metadata.allowedTransitions on
// metadata-driven machines, and against the static table otherwise
func (s Status) CanTransitionTo(target Status) bool {
	if s.item == nil || target.item == nil || target.machine != s.machine {
		return false
	}
	if s.machine.metadataDriven {
		if meta := s.item.Metadata(); meta.HasAllowedTransitions {
			for _, slug := range meta.AllowedTransitions {
				if slug == target.Slug() {
					return true
				}
			}
			return false
		}
	}
	return s.machine.Allows(s.Slug(), target.Slug())
}

// Permits reports whether the current state allows a capability
func (s Status) Permits(guard Guard) bool {
	if s.item == nil {
		return false
	}
	_, ok := s.machine.guards[guard][s.Slug()]
	return ok
}

// EnsureSlug fails unless the status is exactly expected
func (s Status) EnsureSlug(expected, action string) error {
	if s.Slug() != expected {
		return guardError(action, expected, s.Slug())
	}
	return nil
}

// EnsureOneOf fails unless the status is one of expected
func (s Status) EnsureOneOf(action string, expected ...string) error {
	for _, slug := range expected {
		if s.Slug() == slug {
			return nil
		}
	}
	return guardError(action, strings.Join(expected, " ou "), s.Slug())
}

// EnsureTransition fails unless CanTransitionTo(target)
func (s Status) EnsureTransition(target Status, action string) error {
	if s.item == nil || target.item == nil {
		return fmt.Errorf("%w: status ausente para %s", ErrInvalidStatus, action)
	}
	if !s.CanTransitionTo(target) {
		return fmt.Errorf("%w: transição de %s para %s não permitida para %s",
			ErrInvalidStatus, s.Slug(), target.Slug(), action)
	}
	return nil
}

// Permit fails unless the current state allows the capability
func (s Status) Permit(guard Guard, action string) error {
	if !s.Permits(guard) {
		return fmt.Errorf("%w: não é possível %s com status %s", ErrInvalidStatus, action, s.Slug())
	}
	return nil
}

func (s Status) String() string {
	return s.Slug()
}

func guardError(action, expected, actual string) error {
	return &GuardError{Action: action, Expected: expected, Actual: actual}
}

// GuardError carries the attempted action and the expected/actual slugs
type GuardError struct {
	Action   string
	Expected string
	Actual   string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("Status inválido para %s. Esperado %s, recebido %s", e.Action, e.Expected, e.Actual)
}

// Is makes GuardError match ErrInvalidStatus
func (e *GuardError) Is(target error) bool {
	return target == ErrInvalidStatus
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
