// Package discovery holds the product-discovery entities. Each one owns a
// catalog-backed status and exposes one method per lifecycle edge.
package discovery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/discovery/internal/logger"
	"github.com/liamcoop/discovery/status"
)

// ErrValidation is returned when an entity is built from invalid props
var ErrValidation = errors.New("entity validation failed")

// lifecycle is embedded by every entity
type lifecycle struct {
	id        string
	tenantID  string
	status    status.Status
	createdAt time.Time
	updatedAt time.Time
}

func newLifecycle(kind string, machine *status.Machine, id, tenantID string, current status.Status, createdAt time.Time) (lifecycle, error) {
	if strings.TrimSpace(tenantID) == "" {
		return lifecycle{}, fmt.Errorf("%w: %s requires tenantId", ErrValidation, kind)
	}
	if id == "" {
		id = uuid.NewString()
	}
	if err := checkStatus(machine, tenantID, current); err != nil {
		return lifecycle{}, err
	}

	now := time.Now()
	if createdAt.IsZero() {
		createdAt = now
	}
	return lifecycle{
		id:        id,
		tenantID:  tenantID,
		status:    current,
		createdAt: createdAt,
		updatedAt: createdAt,
	}, nil
}

func (l *lifecycle) ID() string            { return l.id }
func (l *lifecycle) TenantID() string      { return l.tenantID }
func (l *lifecycle) Status() status.Status { return l.status }
func (l *lifecycle) CreatedAt() time.Time  { return l.createdAt }
func (l *lifecycle) UpdatedAt() time.Time  { return l.updatedAt }
func (l *lifecycle) IsFinal() bool         { return l.status.IsFinal() }
func (l *lifecycle) IsActive() bool        { return l.status.IsActive() }

// transition validates one edge: the current slug must be one of from, the
// supplied status must be exactly to, and the machine must allow the move
func (l *lifecycle) transition(next status.Status, action, to string, from ...string) error {
	if err := l.status.EnsureOneOf(action, from...); err != nil {
		return rejected(l, action, err)
	}
	return l.moveTo(next, action, to)
}

// moveTo skips the source check; metadata-driven machines rely on EnsureTransition alone
func (l *lifecycle) moveTo(next status.Status, action, to string) error {
	if err := checkStatus(l.status.Machine(), l.tenantID, next); err != nil {
		return rejected(l, action, err)
	}
	if err := next.EnsureSlug(to, action); err != nil {
		return rejected(l, action, err)
	}
	if err := l.status.EnsureTransition(next, action); err != nil {
		return rejected(l, action, err)
	}

	l.status = next
	l.touch()
	return nil
}

func (l *lifecycle) touch() {
	l.updatedAt = time.Now()
}

func checkStatus(machine *status.Machine, tenantID string, s status.Status) error {
	if s.IsZero() {
		return fmt.Errorf("%w: status is required", ErrValidation)
	}
	if s.Machine() != machine {
		return fmt.Errorf("%w: status %s does not belong to %s", ErrValidation, s.Slug(), machine.Entity())
	}
	if s.Item().TenantID() != tenantID {
		return fmt.Errorf("%w: status %s belongs to another tenant", ErrValidation, s.Slug())
	}
	return nil
}

func rejected(l *lifecycle, action string, err error) error {
	logger.RejectedTransition.Add(1)
	logger.Debug("transition rejected",
		"entity_id", l.id,
		"tenant_id", l.tenantID,
		"action", action,
		"status", l.status.Slug(),
		"error", err,
	)
	return err
}

func required(kind, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s requires %s", ErrValidation, kind, field)
	}
	return nil
}
