// Package memory provides the in-memory document store used in local mode and
// unit tests. It mirrors the dynamo backend's observable behavior, including
// ordering and not-found sentinels.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kmcoleman/bajarun-notify/internal/domain"
	"github.com/kmcoleman/bajarun-notify/internal/notify"
	"github.com/kmcoleman/bajarun-notify/internal/store"
)

// defaultListLimit caps outcome listings when the caller doesn't set one.
const defaultListLimit = 100

// Store is an in-memory store.Store implementation. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	templates map[string]domain.Template
	triggers  map[string]domain.Trigger
	outcomes  []domain.OutcomeLogEntry
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		templates: make(map[string]domain.Template),
		triggers:  make(map[string]domain.Trigger),
	}
}

// GetTemplate returns a template by id.
func (s *Store) GetTemplate(_ context.Context, id string) (*domain.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, notify.ErrTemplateNotFound
	}
	cp := t
	return &cp, nil
}

// ListTemplates returns all templates ordered by id.
func (s *Store) ListTemplates(_ context.Context) ([]domain.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateTemplate inserts a template.
func (s *Store) CreateTemplate(_ context.Context, t *domain.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = *t
	return nil
}

// UpdateTemplate replaces a template.
func (s *Store) UpdateTemplate(_ context.Context, t *domain.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[t.ID]; !ok {
		return notify.ErrTemplateNotFound
	}
	s.templates[t.ID] = *t
	return nil
}

// DeleteTemplate removes a template.
func (s *Store) DeleteTemplate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return notify.ErrTemplateNotFound
	}
	delete(s.templates, id)
	return nil
}

// GetTrigger returns a trigger by id.
func (s *Store) GetTrigger(_ context.Context, id string) (*domain.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.triggers[id]
	if !ok {
		return nil, notify.ErrTriggerNotFound
	}
	cp := tr
	return &cp, nil
}

// ListTriggers returns all triggers ordered by creation time then id.
func (s *Store) ListTriggers(_ context.Context) ([]domain.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Trigger, 0, len(s.triggers))
	for _, tr := range s.triggers {
		out = append(out, tr)
	}
	sortTriggers(out)
	return out, nil
}

// CreateTrigger inserts a trigger.
func (s *Store) CreateTrigger(_ context.Context, tr *domain.Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers[tr.ID] = *tr
	return nil
}

// UpdateTrigger replaces a trigger's configuration, preserving its usage
// statistics.
func (s *Store) UpdateTrigger(_ context.Context, tr *domain.Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.triggers[tr.ID]
	if !ok {
		return notify.ErrTriggerNotFound
	}
	cp := *tr
	cp.SendCount = existing.SendCount
	cp.LastTriggered = existing.LastTriggered
	s.triggers[tr.ID] = cp
	return nil
}

// DeleteTrigger removes a trigger.
func (s *Store) DeleteTrigger(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.triggers[id]; !ok {
		return notify.ErrTriggerNotFound
	}
	delete(s.triggers, id)
	return nil
}

// SetTriggerEnabled toggles a trigger.
func (s *Store) SetTriggerEnabled(_ context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.triggers[id]
	if !ok {
		return notify.ErrTriggerNotFound
	}
	tr.Enabled = enabled
	tr.UpdatedAt = time.Now().UTC()
	s.triggers[id] = tr
	return nil
}

// EnabledTriggers returns enabled event-driven triggers watching the pair.
func (s *Store) EnabledTriggers(_ context.Context, collection string, event domain.EventType) ([]domain.Trigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Trigger
	for _, tr := range s.triggers {
		if tr.Enabled && tr.TriggerType == domain.TriggerEventDriven &&
			tr.Collection == collection && tr.Event == event {
			out = append(out, tr)
		}
	}
	sortTriggers(out)
	return out, nil
}

// RecordDispatch increments the trigger's send counter and stamps
// last-triggered. The mutex makes the increment atomic, matching the
// store-level atomic update the dynamo backend uses.
func (s *Store) RecordDispatch(_ context.Context, triggerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.triggers[triggerID]
	if !ok {
		return notify.ErrTriggerNotFound
	}
	tr.SendCount++
	tr.LastTriggered = &at
	s.triggers[triggerID] = tr
	return nil
}

// Append adds an outcome log entry.
func (s *Store) Append(_ context.Context, entry *domain.OutcomeLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, *entry)
	return nil
}

// ListOutcomes returns entries newest-first, applying the filter.
func (s *Store) ListOutcomes(_ context.Context, f store.OutcomeFilter) ([]domain.OutcomeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var out []domain.OutcomeLogEntry
	for i := len(s.outcomes) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.outcomes[i]
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.TriggerID != "" && e.TriggerID != f.TriggerID {
			continue
		}
		if f.RecipientContains != "" && !strings.Contains(e.Recipient, f.RecipientContains) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// sortTriggers orders by id, matching the dynamo backend's sort-key order so
// registry-query order is the same in both modes.
func sortTriggers(triggers []domain.Trigger) {
	sort.Slice(triggers, func(i, j int) bool { return triggers[i].ID < triggers[j].ID })
}
