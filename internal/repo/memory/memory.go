package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/servicecheck/internal/domain"
	"github.com/hamed0406/servicecheck/internal/repo"
)

type Store struct {
	mu     sync.RWMutex
	order  []string
	states map[string]*repo.TargetState
	up     map[string]repo.UpRecord
	latest *domain.Cycle
}

func New() *Store {
	return &Store{
		states: make(map[string]*repo.TargetState),
		up:     make(map[string]repo.UpRecord),
	}
}

// Load keeps the up projection for targets that survive a reload so a
// reload alone does not re-announce them.
func (m *Store) Load(ctx context.Context, targets []domain.Target, selected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := make([]string, 0, len(targets))
	states := make(map[string]*repo.TargetState, len(targets))
	for _, t := range targets {
		order = append(order, t.Name)
		states[t.Name] = &repo.TargetState{Target: t, Selected: selected}
	}
	for name := range m.up {
		if _, ok := states[name]; !ok {
			delete(m.up, name)
		}
	}
	m.order = order
	m.states = states
	return nil
}

func (m *Store) List(ctx context.Context) ([]repo.TargetState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]repo.TargetState, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, *m.states[name])
	}
	return out, nil
}

func (m *Store) Get(ctx context.Context, name string) (*repo.TargetState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[name]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Store) SetSelected(ctx context.Context, name string, selected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[name]
	if !ok {
		return repo.ErrNotFound
	}
	s.Selected = selected
	return nil
}

func (m *Store) SetAreaSelected(ctx context.Context, area string, selected bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, name := range m.order {
		if s := m.states[name]; s.Target.Area == area {
			s.Selected = selected
			n++
		}
	}
	if n == 0 {
		return 0, repo.ErrNotFound
	}
	return n, nil
}

func (m *Store) Selected(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Target
	for _, name := range m.order {
		if s := m.states[name]; s.Selected {
			out = append(out, s.Target)
		}
	}
	return out, nil
}

func (m *Store) Commit(ctx context.Context, c *domain.Cycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range c.Results {
		r := c.Results[i]
		s, ok := m.states[r.Target.Name]
		if !ok {
			// Target dropped by a reload while the cycle ran.
			continue
		}
		s.Last = &r

		prev, seen := m.up[r.Target.Name]
		if !seen || prev.Up != r.IsUp() {
			m.up[r.Target.Name] = repo.UpRecord{Target: r.Target.Name, Up: r.IsUp(), ChangedAt: r.CheckedAt}
		}
	}
	m.latest = c
	return nil
}

func (m *Store) LatestCycle(ctx context.Context) (*domain.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, nil
}

// Projection returns a repo.StateStore view over the same table.
func (m *Store) Projection() repo.StateStore {
	return projection{m}
}

type projection struct{ m *Store }

func (p projection) Get(ctx context.Context, target string) (*repo.UpRecord, error) {
	p.m.mu.RLock()
	defer p.m.mu.RUnlock()
	rec, ok := p.m.up[target]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}
