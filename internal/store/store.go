// Package store defines the persistence interface for the curve host.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/volumefi/curve-engine/internal/model"
)

var (
	// ErrNotFound is returned when a curve does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateSymbol is returned when a curve with the same symbol exists.
	ErrDuplicateSymbol = errors.New("store: duplicate symbol")

	// ErrStateConflict is returned by CommitTrade when the curve's stored
	// supply or reserve no longer match the snapshot the trade was priced on.
	ErrStateConflict = errors.New("store: curve state changed")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Curve operations ---

	// CreateCurve persists a new curve.
	CreateCurve(ctx context.Context, c *model.Curve) error

	// GetCurve retrieves a curve by its ID.
	GetCurve(ctx context.Context, id string) (*model.Curve, error)

	// GetCurveBySymbol retrieves a curve by its token symbol.
	GetCurveBySymbol(ctx context.Context, symbol string) (*model.Curve, error)

	// ListCurves returns all curves.
	ListCurves(ctx context.Context) ([]model.Curve, error)

	// GetCurveForUpdate reads a curve from the source of truth, never from
	// a cache. Trades are priced against it.
	GetCurveForUpdate(ctx context.Context, id string) (*model.Curve, error)

	// UpdateCurveState applies the post-trade state of a curve.
	UpdateCurveState(ctx context.Context, id string, u model.CurveUpdate) error

	// CommitTrade atomically applies u to the curve priced as prev and
	// appends t to the ledger. It fails with ErrStateConflict, writing
	// nothing, when the stored supply or reserve differ from prev.
	CommitTrade(ctx context.Context, prev *model.Curve, u model.CurveUpdate, t *model.Trade) error

	// --- Immutable trade ledger ---

	// InsertTrade appends an immutable trade record.
	InsertTrade(ctx context.Context, t *model.Trade) error

	// GetTradesByCurve returns all trades for a curve, oldest first.
	GetTradesByCurve(ctx context.Context, curveID string) ([]model.Trade, error)

	// GetTradesByTrader returns all trades for a trader, oldest first.
	GetTradesByTrader(ctx context.Context, trader string) ([]model.Trade, error)

	// --- Holding queries ---

	// GetTraderHoldings aggregates a trader's ledger into per-curve holdings.
	GetTraderHoldings(ctx context.Context, trader string) ([]model.Holding, error)

	// GetHolding returns a trader's holding in one curve from the source of
	// truth. A trader with no trades in the curve holds zero.
	GetHolding(ctx context.Context, trader, curveID string) (model.Holding, error)
}

// stateMatches reports whether the stored curve still has the supply and
// reserve of the snapshot a trade was priced on.
func stateMatches(stored, prev *model.Curve) bool {
	return stored.TotalSupply.Equal(prev.TotalSupply) &&
		stored.ReserveBalance.Equal(prev.ReserveBalance)
}

// findHolding picks curveID out of holdings, or a zero holding.
func findHolding(trader, curveID string, holdings []model.Holding) model.Holding {
	for _, h := range holdings {
		if h.CurveID == curveID {
			return h
		}
	}
	return model.Holding{Trader: trader, CurveID: curveID}
}

// aggregateHoldings folds a trader's trades into one holding per curve,
// preserving first-trade order.
func aggregateHoldings(trader string, trades []model.Trade) []model.Holding {
	index := make(map[string]int)
	var holdings []model.Holding
	for _, t := range trades {
		if t.Trader != trader {
			continue
		}
		i, ok := index[t.CurveID]
		if !ok {
			i = len(holdings)
			index[t.CurveID] = i
			holdings = append(holdings, model.Holding{
				Trader:  trader,
				CurveID: t.CurveID,
				Symbol:  t.Symbol,
			})
		}
		h := &holdings[i]
		if t.Side == model.SideBuy {
			h.Tokens = h.Tokens.Add(t.Tokens)
			h.NetReserve = h.NetReserve.Add(t.Reserve)
		} else {
			h.Tokens = h.Tokens.Sub(t.Tokens)
			h.NetReserve = h.NetReserve.Sub(t.Reserve)
		}
	}
	return holdings
}
