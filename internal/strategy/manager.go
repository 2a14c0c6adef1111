// Package strategy manages quant strategy lifecycle and runs the periodic
// scheduler that evaluates signals and executes automated trades.
//
// A strategy is bound to one (account, instrument) pair and holds either no
// position or exactly one lot. Runtime state advances only through trade
// execution results inside the scheduler scan.
package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/XavierD3728/stockquant/internal/model"
)

// InstrumentChecker reports whether an instrument code is tradeable.
type InstrumentChecker interface {
	Has(code string) bool
}

// Store persists strategy rows. InsertStrategy assigns the ID.
type Store interface {
	InsertStrategy(ctx context.Context, s *model.Strategy) error
	UpdateStrategy(ctx context.Context, s model.Strategy) error
}

// Manager owns the strategy registry.
type Manager struct {
	instruments InstrumentChecker
	store       Store // nil disables persistence

	mu     sync.RWMutex
	byID   map[int64]*model.Strategy
	nextID int64
}

// NewManager creates an empty registry.
func NewManager(instruments InstrumentChecker, store Store) *Manager {
	return &Manager{
		instruments: instruments,
		store:       store,
		byID:        make(map[int64]*model.Strategy),
	}
}

// Add registers a new strategy for the account. Parameters are validated at
// construction time, the instrument must exist, and at most one strategy per
// (account, instrument) is allowed.
func (m *Manager) Add(ctx context.Context, accountID, code string, params model.StrategyParams) (*model.Strategy, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if !m.instruments.Has(code) {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownInstrument, code)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.byID {
		if s.AccountID == accountID && s.Code == code {
			return nil, fmt.Errorf("%w: account %s already runs a strategy on %s", model.ErrDuplicateStrategy, accountID, code)
		}
	}

	now := time.Now()
	s := &model.Strategy{
		AccountID:   accountID,
		Code:        code,
		Params:      params,
		AvgPrice:    decimal.Zero,
		TotalProfit: decimal.Zero,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if m.store != nil {
		if err := m.store.InsertStrategy(ctx, s); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
		}
	} else {
		m.nextID++
		s.ID = m.nextID
	}
	if s.ID > m.nextID {
		m.nextID = s.ID
	}

	m.byID[s.ID] = s
	cp := *s
	return &cp, nil
}

// Toggle flips the active flag. Only the owning account may toggle.
func (m *Manager) Toggle(ctx context.Context, accountID string, strategyID int64) (*model.Strategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[strategyID]
	if !ok {
		return nil, fmt.Errorf("%w: strategy %d", model.ErrNotFound, strategyID)
	}
	if s.AccountID != accountID {
		return nil, fmt.Errorf("%w: strategy %d", model.ErrForbidden, strategyID)
	}

	s.IsActive = !s.IsActive
	s.UpdatedAt = time.Now()
	if m.store != nil {
		if err := m.store.UpdateStrategy(ctx, *s); err != nil {
			s.IsActive = !s.IsActive // roll back the flip
			return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
		}
	}

	cp := *s
	return &cp, nil
}

// List returns copies of the account's strategies, ordered by ID.
func (m *Manager) List(accountID string) []model.Strategy {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Strategy
	for _, s := range m.byID {
		if s.AccountID == accountID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Active returns copies of every active strategy across all accounts,
// ordered by ID. Used by the scheduler scan.
func (m *Manager) Active() []model.Strategy {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Strategy
	for _, s := range m.byID {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore hydrates the registry from persisted rows at startup.
func (m *Manager) Restore(strategies []model.Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range strategies {
		s := strategies[i]
		m.byID[s.ID] = &s
		if s.ID > m.nextID {
			m.nextID = s.ID
		}
	}
}

// markBought records a filled entry: position = lot, entry price, trade date.
func (m *Manager) markBought(ctx context.Context, strategyID int64, execPrice decimal.Decimal, when time.Time) error {
	return m.updateRuntime(ctx, strategyID, func(s *model.Strategy) {
		s.Position = s.Params.LotSize
		s.AvgPrice = execPrice
		s.LastTradeDate = when
	})
}

// markSold records a filled exit: realized profit added, position flat.
func (m *Manager) markSold(ctx context.Context, strategyID int64, profit decimal.Decimal, when time.Time) error {
	return m.updateRuntime(ctx, strategyID, func(s *model.Strategy) {
		s.TotalProfit = s.TotalProfit.Add(profit)
		s.Position = 0
		s.AvgPrice = decimal.Zero
		s.LastTradeDate = when
	})
}

func (m *Manager) updateRuntime(ctx context.Context, strategyID int64, apply func(*model.Strategy)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[strategyID]
	if !ok {
		return fmt.Errorf("%w: strategy %d", model.ErrNotFound, strategyID)
	}
	apply(s)
	s.UpdatedAt = time.Now()

	if m.store != nil {
		if err := m.store.UpdateStrategy(ctx, *s); err != nil {
			// The trade itself already committed; runtime state will be
			// rewritten on the next successful update.
			return fmt.Errorf("%w: %v", model.ErrPersistence, err)
		}
	}
	return nil
}
