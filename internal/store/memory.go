package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/volumefi/curve-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	curves map[string]*model.Curve
	ledger []model.Trade
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		curves: make(map[string]*model.Curve),
	}
}

func (s *MemoryStore) CreateCurve(_ context.Context, c *model.Curve) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.curves {
		if existing.Symbol == c.Symbol {
			return fmt.Errorf("%w: %s", ErrDuplicateSymbol, c.Symbol)
		}
	}

	// Store a copy to avoid external mutation.
	cp := *c
	s.curves[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCurve(_ context.Context, id string) (*model.Curve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.curves[id]
	if !ok {
		return nil, fmt.Errorf("%w: curve %s", ErrNotFound, id)
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) GetCurveBySymbol(_ context.Context, symbol string) (*model.Curve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.curves {
		if c.Symbol == symbol {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: curve for symbol %s", ErrNotFound, symbol)
}

func (s *MemoryStore) ListCurves(_ context.Context) ([]model.Curve, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	curves := make([]model.Curve, 0, len(s.curves))
	for _, c := range s.curves {
		curves = append(curves, *c)
	}
	sort.Slice(curves, func(i, j int) bool {
		return curves[i].CreatedAt.Before(curves[j].CreatedAt)
	})
	return curves, nil
}

func (s *MemoryStore) GetCurveForUpdate(ctx context.Context, id string) (*model.Curve, error) {
	return s.GetCurve(ctx, id)
}

func (s *MemoryStore) UpdateCurveState(_ context.Context, id string, u model.CurveUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.curves[id]
	if !ok {
		return fmt.Errorf("%w: curve %s", ErrNotFound, id)
	}
	applyCurveUpdate(c, u)
	return nil
}

// CommitTrade checks, updates and appends under one write lock.
func (s *MemoryStore) CommitTrade(_ context.Context, prev *model.Curve, u model.CurveUpdate, t *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.curves[prev.ID]
	if !ok {
		return fmt.Errorf("%w: curve %s", ErrNotFound, prev.ID)
	}
	if !stateMatches(c, prev) {
		return fmt.Errorf("%w: curve %s", ErrStateConflict, prev.ID)
	}
	for _, existing := range s.ledger {
		if existing.ID == t.ID {
			return fmt.Errorf("store: duplicate trade %s", t.ID)
		}
	}
	applyCurveUpdate(c, u)
	s.ledger = append(s.ledger, *t)
	return nil
}

func applyCurveUpdate(c *model.Curve, u model.CurveUpdate) {
	c.TotalSupply = u.TotalSupply
	c.ReserveBalance = u.ReserveBalance
	c.Volume = u.Volume
	c.ThresholdReached = u.ThresholdReached
	c.FeesEarned = u.FeesEarned
	c.Status = u.Status
}

func (s *MemoryStore) InsertTrade(_ context.Context, t *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = append(s.ledger, *t)
	return nil
}

func (s *MemoryStore) GetTradesByCurve(_ context.Context, curveID string) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Trade
	for _, t := range s.ledger {
		if t.CurveID == curveID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetTradesByTrader(_ context.Context, trader string) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Trade
	for _, t := range s.ledger {
		if t.Trader == trader {
			result = append(result, t)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetTraderHoldings(_ context.Context, trader string) ([]model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return aggregateHoldings(trader, s.ledger), nil
}

func (s *MemoryStore) GetHolding(_ context.Context, trader, curveID string) (model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return findHolding(trader, curveID, aggregateHoldings(trader, s.ledger)), nil
}
