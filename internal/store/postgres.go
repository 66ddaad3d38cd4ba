package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/volumefi/curve-engine/internal/model"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

const curveColumns = `id, symbol, name,
	total_supply::TEXT, reserve_balance::TEXT,
	weight_ppm, fee_bps,
	volume::TEXT, volume_threshold::TEXT, threshold_reached,
	fees_earned::TEXT, status, created_at`

const tradeColumns = `id, curve_id, symbol, trader, side,
	tokens::TEXT, reserve::TEXT, curve_reserve::TEXT, fee::TEXT, price::TEXT, timestamp`

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All amounts are stored as NUMERIC for exact integer precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the curve and trade tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateCurve(ctx context.Context, c *model.Curve) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO curves (id, symbol, name, total_supply, reserve_balance, weight_ppm, fee_bps,
		                     volume, volume_threshold, threshold_reached, fees_earned, status, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7,
		         $8::NUMERIC, $9::NUMERIC, $10, $11::NUMERIC, $12, $13)`,
		c.ID, c.Symbol, c.Name,
		c.TotalSupply.String(), c.ReserveBalance.String(),
		int64(c.WeightPPM), int64(c.FeeBPS),
		c.Volume.String(), c.VolumeThreshold.String(), c.ThresholdReached,
		c.FeesEarned.String(), c.Status, c.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, c.Symbol)
	}
	return err
}

func (s *PostgresStore) GetCurve(ctx context.Context, id string) (*model.Curve, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+curveColumns+` FROM curves WHERE id = $1`, id)
	c, err := scanCurve(row)
	if err != nil {
		return nil, fmt.Errorf("get curve %s: %w", id, notFound(err))
	}
	return c, nil
}

func (s *PostgresStore) GetCurveBySymbol(ctx context.Context, symbol string) (*model.Curve, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+curveColumns+` FROM curves WHERE symbol = $1`, symbol)
	c, err := scanCurve(row)
	if err != nil {
		return nil, fmt.Errorf("get curve by symbol %s: %w", symbol, notFound(err))
	}
	return c, nil
}

func (s *PostgresStore) ListCurves(ctx context.Context) ([]model.Curve, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+curveColumns+` FROM curves ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var curves []model.Curve
	for rows.Next() {
		c, err := scanCurve(rows)
		if err != nil {
			return nil, err
		}
		curves = append(curves, *c)
	}
	return curves, rows.Err()
}

func (s *PostgresStore) UpdateCurveState(ctx context.Context, id string, u model.CurveUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE curves
		 SET total_supply = $2::NUMERIC, reserve_balance = $3::NUMERIC,
		     volume = $4::NUMERIC, threshold_reached = $5,
		     fees_earned = $6::NUMERIC, status = $7
		 WHERE id = $1`,
		id, u.TotalSupply.String(), u.ReserveBalance.String(),
		u.Volume.String(), u.ThresholdReached,
		u.FeesEarned.String(), u.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: curve %s", ErrNotFound, id)
	}
	return nil
}

// GetCurveForUpdate reads the row straight from the database. CommitTrade
// rechecks supply and reserve, so no row lock is held between the two.
func (s *PostgresStore) GetCurveForUpdate(ctx context.Context, id string) (*model.Curve, error) {
	return s.GetCurve(ctx, id)
}

// CommitTrade updates the curve and inserts the trade in one transaction.
// The update only matches while supply and reserve equal prev's.
func (s *PostgresStore) CommitTrade(ctx context.Context, prev *model.Curve, u model.CurveUpdate, t *model.Trade) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE curves
			 SET total_supply = $4::NUMERIC, reserve_balance = $5::NUMERIC,
			     volume = $6::NUMERIC, threshold_reached = $7,
			     fees_earned = $8::NUMERIC, status = $9
			 WHERE id = $1 AND total_supply = $2::NUMERIC AND reserve_balance = $3::NUMERIC`,
			prev.ID, prev.TotalSupply.String(), prev.ReserveBalance.String(),
			u.TotalSupply.String(), u.ReserveBalance.String(),
			u.Volume.String(), u.ThresholdReached,
			u.FeesEarned.String(), u.Status,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM curves WHERE id = $1)`, prev.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: curve %s", ErrNotFound, prev.ID)
			}
			return fmt.Errorf("%w: curve %s", ErrStateConflict, prev.ID)
		}
		return insertTrade(ctx, tx, t)
	})
}

func (s *PostgresStore) InsertTrade(ctx context.Context, t *model.Trade) error {
	return insertTrade(ctx, s.pool, t)
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertTrade(ctx context.Context, db execer, t *model.Trade) error {
	_, err := db.Exec(ctx,
		`INSERT INTO trades (id, curve_id, symbol, trader, side, tokens, reserve, curve_reserve, fee, price, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11)`,
		t.ID, t.CurveID, t.Symbol, t.Trader, t.Side,
		t.Tokens.String(), t.Reserve.String(), t.CurveReserve.String(),
		t.Fee.String(), t.Price.String(),
		t.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetTradesByCurve(ctx context.Context, curveID string) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE curve_id = $1 ORDER BY timestamp`, curveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *PostgresStore) GetTradesByTrader(ctx context.Context, trader string) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE trader = $1 ORDER BY timestamp`, trader)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *PostgresStore) GetTraderHoldings(ctx context.Context, trader string) ([]model.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT curve_id, symbol,
		        COALESCE(SUM(CASE WHEN side = 'BUY' THEN tokens ELSE -tokens END), 0)::TEXT,
		        COALESCE(SUM(CASE WHEN side = 'BUY' THEN reserve ELSE -reserve END), 0)::TEXT
		 FROM trades
		 WHERE trader = $1
		 GROUP BY curve_id, symbol
		 ORDER BY MIN(timestamp)`, trader)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []model.Holding
	for rows.Next() {
		h := model.Holding{Trader: trader}
		var tokensS, reserveS string
		if err := rows.Scan(&h.CurveID, &h.Symbol, &tokensS, &reserveS); err != nil {
			return nil, err
		}
		h.Tokens, _ = decimal.NewFromString(tokensS)
		h.NetReserve, _ = decimal.NewFromString(reserveS)
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (s *PostgresStore) GetHolding(ctx context.Context, trader, curveID string) (model.Holding, error) {
	h := model.Holding{Trader: trader, CurveID: curveID}
	var tokensS, reserveS string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MIN(symbol), ''),
		        COALESCE(SUM(CASE WHEN side = 'BUY' THEN tokens ELSE -tokens END), 0)::TEXT,
		        COALESCE(SUM(CASE WHEN side = 'BUY' THEN reserve ELSE -reserve END), 0)::TEXT
		 FROM trades
		 WHERE trader = $1 AND curve_id = $2`, trader, curveID).Scan(&h.Symbol, &tokensS, &reserveS)
	if err != nil {
		return model.Holding{}, fmt.Errorf("get holding %s/%s: %w", trader, curveID, err)
	}
	h.Tokens, _ = decimal.NewFromString(tokensS)
	h.NetReserve, _ = decimal.NewFromString(reserveS)
	return h, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// scanCurve reads one curves row; it accepts both pgx.Row and pgx.Rows.
func scanCurve(row pgx.Row) (*model.Curve, error) {
	var c model.Curve
	var supplyS, reserveS, volumeS, thresholdS, feesS string
	var weight, feeBPS int64

	if err := row.Scan(&c.ID, &c.Symbol, &c.Name,
		&supplyS, &reserveS,
		&weight, &feeBPS,
		&volumeS, &thresholdS, &c.ThresholdReached,
		&feesS, &c.Status, &c.CreatedAt); err != nil {
		return nil, err
	}

	c.TotalSupply, _ = decimal.NewFromString(supplyS)
	c.ReserveBalance, _ = decimal.NewFromString(reserveS)
	c.WeightPPM = uint32(weight)
	c.FeeBPS = uint32(feeBPS)
	c.Volume, _ = decimal.NewFromString(volumeS)
	c.VolumeThreshold, _ = decimal.NewFromString(thresholdS)
	c.FeesEarned, _ = decimal.NewFromString(feesS)
	return &c, nil
}

// scanTrades reads pgx rows into Trade slices.
func scanTrades(rows pgx.Rows) ([]model.Trade, error) {
	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var tokensS, reserveS, curveReserveS, feeS, priceS string

		if err := rows.Scan(&t.ID, &t.CurveID, &t.Symbol, &t.Trader, &t.Side,
			&tokensS, &reserveS, &curveReserveS, &feeS, &priceS, &t.Timestamp); err != nil {
			return nil, err
		}

		t.Tokens, _ = decimal.NewFromString(tokensS)
		t.Reserve, _ = decimal.NewFromString(reserveS)
		t.CurveReserve, _ = decimal.NewFromString(curveReserveS)
		t.Fee, _ = decimal.NewFromString(feeS)
		t.Price, _ = decimal.NewFromString(priceS)

		trades = append(trades, t)
	}
	return trades, rows.Err()
}
