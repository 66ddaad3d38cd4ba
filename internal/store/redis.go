package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/volumefi/curve-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     redis.Cmdable
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb redis.Cmdable, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateCurve(ctx context.Context, c *model.Curve) error {
	if err := s.primary.CreateCurve(ctx, c); err != nil {
		return err
	}
	s.cacheCurve(ctx, c)
	return nil
}

func (s *CachedStore) UpdateCurveState(ctx context.Context, id string, u model.CurveUpdate) error {
	if err := s.primary.UpdateCurveState(ctx, id, u); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	s.rdb.Del(ctx, curveKey(id))
	return nil
}

func (s *CachedStore) CommitTrade(ctx context.Context, prev *model.Curve, u model.CurveUpdate, t *model.Trade) error {
	if err := s.primary.CommitTrade(ctx, prev, u, t); err != nil {
		return err
	}
	s.rdb.Del(ctx, curveKey(prev.ID), holdingsKey(t.Trader))
	return nil
}

func (s *CachedStore) InsertTrade(ctx context.Context, t *model.Trade) error {
	if err := s.primary.InsertTrade(ctx, t); err != nil {
		return err
	}
	s.rdb.Del(ctx, holdingsKey(t.Trader))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetCurve(ctx context.Context, id string) (*model.Curve, error) {
	data, err := s.rdb.Get(ctx, curveKey(id)).Bytes()
	if err == nil {
		var c model.Curve
		if json.Unmarshal(data, &c) == nil {
			return &c, nil
		}
	}

	c, err := s.primary.GetCurve(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheCurve(ctx, c)
	return c, nil
}

func (s *CachedStore) GetCurveBySymbol(ctx context.Context, symbol string) (*model.Curve, error) {
	// Symbols never move between curves, so the symbol→ID mapping is stable.
	curveID, err := s.rdb.Get(ctx, symbolKey(symbol)).Result()
	if err == nil {
		return s.GetCurve(ctx, curveID)
	}

	c, err := s.primary.GetCurveBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	s.cacheCurve(ctx, c)
	s.rdb.Set(ctx, symbolKey(symbol), c.ID, s.ttl)
	return c, nil
}

func (s *CachedStore) GetTraderHoldings(ctx context.Context, trader string) ([]model.Holding, error) {
	data, err := s.rdb.Get(ctx, holdingsKey(trader)).Bytes()
	if err == nil {
		var holdings []model.Holding
		if json.Unmarshal(data, &holdings) == nil {
			return holdings, nil
		}
	}

	holdings, err := s.primary.GetTraderHoldings(ctx, trader)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(holdings); err == nil {
		s.rdb.Set(ctx, holdingsKey(trader), data, s.ttl)
	}
	return holdings, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListCurves(ctx context.Context) ([]model.Curve, error) {
	return s.primary.ListCurves(ctx)
}

// GetCurveForUpdate and GetHolding feed trade execution and always read
// the primary.
func (s *CachedStore) GetCurveForUpdate(ctx context.Context, id string) (*model.Curve, error) {
	return s.primary.GetCurveForUpdate(ctx, id)
}

func (s *CachedStore) GetHolding(ctx context.Context, trader, curveID string) (model.Holding, error) {
	return s.primary.GetHolding(ctx, trader, curveID)
}

func (s *CachedStore) GetTradesByCurve(ctx context.Context, curveID string) ([]model.Trade, error) {
	return s.primary.GetTradesByCurve(ctx, curveID)
}

func (s *CachedStore) GetTradesByTrader(ctx context.Context, trader string) ([]model.Trade, error) {
	return s.primary.GetTradesByTrader(ctx, trader)
}

// --- Cache helpers ---

func (s *CachedStore) cacheCurve(ctx context.Context, c *model.Curve) {
	if data, err := json.Marshal(c); err == nil {
		s.rdb.Set(ctx, curveKey(c.ID), data, s.ttl)
	}
}

func curveKey(id string) string { return fmt.Sprintf("curve:%s", id) }
func symbolKey(symbol string) string { return fmt.Sprintf("symbol:%s", symbol) }
func holdingsKey(trader string) string { return fmt.Sprintf("holdings:%s", trader) }
