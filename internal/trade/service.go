// Package trade provides the HTTP handlers and business logic for
// creating curves, quoting and executing trades, and querying holdings.
//
// All amounts use shopspring/decimal integers in smallest units. Never
// float64 for money.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/volumefi/curve-engine/internal/engine"
	"github.com/volumefi/curve-engine/internal/limits"
	"github.com/volumefi/curve-engine/internal/metrics"
	"github.com/volumefi/curve-engine/internal/model"
	"github.com/volumefi/curve-engine/internal/store"
	"github.com/volumefi/curve-engine/internal/token"
)

var (
	// ErrSlippage is returned when a quote falls outside the trader's bound.
	ErrSlippage = errors.New("trade: slippage bound exceeded")

	// ErrCurveGraduated is returned for trades against a curve that crossed
	// its volume threshold.
	ErrCurveGraduated = errors.New("trade: curve has graduated")
)

// Service handles curve operations. Uses a mutex for serialized trade
// execution (single-instance). For horizontal scaling, replace with
// distributed locking or database-level optimistic concurrency.
type Service struct {
	store  store.Store
	pricer engine.Pricer
	limits *limits.TradeLimits
	mu     sync.Mutex
	wsHub  *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new trade service.
// Pass nil for hub if WebSocket broadcasting is not needed, and nil for lim
// to disable trade limits.
func NewService(st store.Store, pricer engine.Pricer, lim *limits.TradeLimits, hub *WSHub) *Service {
	if lim == nil {
		lim = &limits.TradeLimits{}
	}
	return &Service{
		store:  st,
		pricer: pricer,
		limits: lim,
		wsHub:  hub,
	}
}

// Routes registers the API handlers on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/calibrate", s.Calibrate)
	r.Post("/curves", s.CreateCurve)
	r.Get("/curves", s.ListCurves)
	r.Get("/curves/{curveID}", s.GetCurve)
	r.Get("/curves/{curveID}/price", s.GetPrice)
	r.Get("/curves/{curveID}/quote", s.GetQuote)
	r.Get("/curves/{curveID}/history", s.GetCurveHistory)
	r.Post("/trade", s.ExecuteTrade)
	r.Get("/holdings/{trader}", s.GetHoldings)
}

// SyncMetrics sets gauges that are derived from stored state.
func (s *Service) SyncMetrics(ctx context.Context) error {
	curves, err := s.store.ListCurves(ctx)
	if err != nil {
		return err
	}
	active := 0
	for _, c := range curves {
		if c.Status == model.StatusBonding {
			active++
		}
	}
	metrics.ActiveCurves.Set(float64(active))
	return nil
}

// --- Request/Response types ---

// CalibrateRequest is the JSON body for POST /calibrate. Zero virtual
// anchors default to S0 = 1e18 and C0 = 1.
type CalibrateRequest struct {
	TargetReturn   decimal.Decimal `json:"target_return"`
	DepositAmount  decimal.Decimal `json:"deposit_amount"`
	VirtualSupply  decimal.Decimal `json:"virtual_supply"`
	VirtualReserve decimal.Decimal `json:"virtual_reserve"`
}

// CalibrateResponse is the JSON body returned from POST /calibrate.
type CalibrateResponse struct {
	WeightPPM uint32                   `json:"weight_ppm"`
	Anchors   model.CalibrationAnchors `json:"anchors"`
}

// CreateCurveRequest is the JSON body for curve creation. Either WeightPPM
// or the TargetReturn/DepositAmount anchor pair must be given.
type CreateCurveRequest struct {
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name"`
	WeightPPM       uint32          `json:"weight_ppm"`
	TargetReturn    decimal.Decimal `json:"target_return"`
	DepositAmount   decimal.Decimal `json:"deposit_amount"`
	FeeBPS          uint32          `json:"fee_bps"`
	VolumeThreshold decimal.Decimal `json:"volume_threshold"`
	InitialSupply   decimal.Decimal `json:"initial_supply"`  // 0 → S0
	InitialReserve  decimal.Decimal `json:"initial_reserve"` // 0 → C0
}

// PriceResponse is the JSON body returned from GET /curves/{curveID}/price.
type PriceResponse struct {
	CurveID        string          `json:"curve_id"`
	Symbol         string          `json:"symbol"`
	SpotPrice      decimal.Decimal `json:"spot_price"`
	TotalSupply    decimal.Decimal `json:"total_supply"`
	ReserveBalance decimal.Decimal `json:"reserve_balance"`
	WeightPPM      uint32          `json:"weight_ppm"`
	Status         string          `json:"status"`
}

// QuoteResponse is the JSON body returned from GET /curves/{curveID}/quote.
type QuoteResponse struct {
	CurveID string `json:"curve_id"`
	engine.Quote
	AveragePrice decimal.Decimal `json:"average_price"`
}

// TradeRequest is the JSON body for POST /trade. Exactly one of Tokens or
// Reserve selects the quote: tokens wanted/offered, or reserve spent/wanted.
// Zero slippage bounds are not enforced.
type TradeRequest struct {
	Trader  string          `json:"trader"`
	CurveID string          `json:"curve_id"`
	Symbol  string          `json:"symbol"` // alternative to curve_id
	Side    string          `json:"side"`   // "BUY" or "SELL"
	Tokens  decimal.Decimal `json:"tokens"`
	Reserve decimal.Decimal `json:"reserve"`

	MaxReserveIn  decimal.Decimal `json:"max_reserve_in"`
	MinTokensOut  decimal.Decimal `json:"min_tokens_out"`
	MinReserveOut decimal.Decimal `json:"min_reserve_out"`
}

// TradeResponse is the JSON body returned from POST /trade.
type TradeResponse struct {
	TradeID          string          `json:"trade_id"`
	Trader           string          `json:"trader"`
	CurveID          string          `json:"curve_id"`
	Symbol           string          `json:"symbol"`
	Side             string          `json:"side"`
	Tokens           decimal.Decimal `json:"tokens"`
	Reserve          decimal.Decimal `json:"reserve"`
	Fee              decimal.Decimal `json:"fee"`
	Price            decimal.Decimal `json:"price"`
	ThresholdCrossed bool            `json:"threshold_crossed"`
	Curve            model.Curve     `json:"curve"`
	Holding          model.Holding   `json:"holding"`
}

// HoldingsResponse is the JSON body returned from GET /holdings/{trader}.
type HoldingsResponse struct {
	Trader   string          `json:"trader"`
	Holdings []model.Holding `json:"holdings"`
}

// --- HTTP Handlers ---

// Calibrate handles POST /api/v1/calibrate
func (s *Service) Calibrate(w http.ResponseWriter, r *http.Request) {
	var req CalibrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	anchors := model.DefaultAnchors(req.TargetReturn, req.DepositAmount)
	if !req.VirtualSupply.IsZero() {
		anchors.VirtualSupply = req.VirtualSupply
	}
	if !req.VirtualReserve.IsZero() {
		anchors.VirtualReserve = req.VirtualReserve
	}

	ppm, err := s.pricer.Calibrate(anchors)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CalibrateResponse{WeightPPM: ppm, Anchors: anchors})
}

// CreateCurve handles POST /api/v1/curves
func (s *Service) CreateCurve(w http.ResponseWriter, r *http.Request) {
	var req CreateCurveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c, err := s.newCurve(req)
	if err != nil {
		writeErr(w, err)
		return
	}

	if err := s.store.CreateCurve(r.Context(), c); err != nil {
		writeErr(w, err)
		return
	}
	metrics.ActiveCurves.Inc()

	slog.Info("curve created",
		"id", c.ID,
		"symbol", c.Symbol,
		"weight_ppm", c.WeightPPM,
		"fee_bps", c.FeeBPS,
		"volume_threshold", c.VolumeThreshold.String(),
	)

	writeJSON(w, http.StatusCreated, c)
}

func (s *Service) newCurve(req CreateCurveRequest) (*model.Curve, error) {
	symbol, err := token.ParseSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	name, err := token.ParseName(req.Name)
	if err != nil {
		return nil, err
	}

	ppm := req.WeightPPM
	if ppm == 0 {
		if req.TargetReturn.IsZero() || req.DepositAmount.IsZero() {
			return nil, fmt.Errorf("%w: weight_ppm or target_return and deposit_amount are required",
				model.ErrInvalidParameter)
		}
		ppm, err = s.pricer.Calibrate(model.DefaultAnchors(req.TargetReturn, req.DepositAmount))
		if err != nil {
			return nil, err
		}
	}

	fc := model.FeeConfig{FeeBasisPoints: req.FeeBPS}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	if err := model.ValidateAmount("volume threshold", req.VolumeThreshold); err != nil {
		return nil, err
	}

	supply, reserve := req.InitialSupply, req.InitialReserve
	if supply.IsZero() && reserve.IsZero() {
		supply, reserve = model.DefaultVirtualSupply, model.DefaultVirtualReserve
	}
	st := model.CurveState{TotalSupply: supply, ReserveBalance: reserve, ConnectorWeightPPM: ppm}
	if err := st.Validate(); err != nil {
		return nil, err
	}

	return &model.Curve{
		ID:              uuid.New().String(),
		Symbol:          symbol,
		Name:            name,
		TotalSupply:     supply,
		ReserveBalance:  reserve,
		WeightPPM:       ppm,
		FeeBPS:          req.FeeBPS,
		Volume:          decimal.Zero,
		VolumeThreshold: req.VolumeThreshold,
		FeesEarned:      decimal.Zero,
		Status:          model.StatusBonding,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// ListCurves handles GET /api/v1/curves
// Returns all curves, optionally filtered by ?status=bonding|graduated.
func (s *Service) ListCurves(w http.ResponseWriter, r *http.Request) {
	curves, err := s.store.ListCurves(r.Context())
	if err != nil {
		writeError(w, "failed to list curves", http.StatusInternalServerError)
		return
	}

	filtered := make([]model.Curve, 0, len(curves))
	status := r.URL.Query().Get("status")
	for _, c := range curves {
		if status == "" || c.Status == status {
			filtered = append(filtered, c)
		}
	}

	writeJSON(w, http.StatusOK, filtered)
}

// GetCurve handles GET /api/v1/curves/{curveID}
func (s *Service) GetCurve(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCurve(r.Context(), chi.URLParam(r, "curveID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetPrice handles GET /api/v1/curves/{curveID}/price
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCurve(r.Context(), chi.URLParam(r, "curveID"))
	if err != nil {
		writeErr(w, err)
		return
	}

	spot, err := s.pricer.SpotPrice(c.State())
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PriceResponse{
		CurveID:        c.ID,
		Symbol:         c.Symbol,
		SpotPrice:      spot,
		TotalSupply:    c.TotalSupply,
		ReserveBalance: c.ReserveBalance,
		WeightPPM:      c.WeightPPM,
		Status:         c.Status,
	})
}

// GetQuote handles GET /api/v1/curves/{curveID}/quote?side=buy&tokens=...
// or ?side=sell&reserve=... without executing anything.
func (s *Service) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokens, err := queryAmount(q.Get("tokens"))
	if err != nil {
		writeErr(w, err)
		return
	}
	reserve, err := queryAmount(q.Get("reserve"))
	if err != nil {
		writeErr(w, err)
		return
	}

	c, err := s.store.GetCurve(r.Context(), chi.URLParam(r, "curveID"))
	if err != nil {
		writeErr(w, err)
		return
	}

	quote, err := s.quote(c, q.Get("side"), tokens, reserve)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, QuoteResponse{
		CurveID:      c.ID,
		Quote:        quote,
		AveragePrice: averagePrice(quote),
	})
}

// ExecuteTrade handles POST /api/v1/trade
// Prices the trade against the curve, applies limits and slippage bounds,
// then persists the new curve state and an immutable trade record.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	req.Trader = strings.TrimSpace(req.Trader)
	if req.Trader == "" {
		writeError(w, "trader is required", http.StatusBadRequest)
		return
	}
	req.Side = strings.ToUpper(req.Side)
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		writeError(w, "side must be BUY or SELL", http.StatusBadRequest)
		return
	}

	resp, err := s.execute(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) execute(ctx context.Context, req TradeRequest) (*TradeResponse, error) {
	start := time.Now()

	// Serialize trade execution.
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.tradeCurve(ctx, req.CurveID, req.Symbol)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusBonding {
		return nil, fmt.Errorf("%w: %s", ErrCurveGraduated, c.Symbol)
	}

	q, err := s.quote(c, req.Side, req.Tokens, req.Reserve)
	if err != nil {
		return nil, err
	}
	if q.Tokens.IsZero() || q.Reserve.IsZero() {
		return nil, fmt.Errorf("%w: trade of %s tokens for %s reserve is empty",
			model.ErrInvalidParameter, q.Tokens, q.Reserve)
	}
	if err := checkSlippage(req, q); err != nil {
		metrics.LimitRejections.WithLabelValues("slippage").Inc()
		return nil, err
	}

	// --- Trade limit check ---
	current, err := s.store.GetHolding(ctx, req.Trader, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load holding: %w", err)
	}
	if q.Side == model.SideBuy {
		err = s.limits.CheckBuy(q.Reserve, q.Tokens, current.Tokens)
	} else {
		err = s.limits.CheckSell(q.Tokens, current.Tokens)
	}
	if err != nil {
		metrics.LimitRejections.WithLabelValues(limitReason(err)).Inc()
		return nil, err
	}

	// --- New curve state ---
	supply, reserve := c.TotalSupply.Add(q.Tokens), c.ReserveBalance.Add(q.CurveReserve)
	if q.Side == model.SideSell {
		supply, reserve = c.TotalSupply.Sub(q.Tokens), c.ReserveBalance.Sub(q.CurveReserve)
	}
	th, crossed, err := s.pricer.ProcessVolume(c.ThresholdState(), q.CurveReserve)
	if err != nil {
		return nil, err
	}
	status := c.Status
	if crossed {
		status = model.StatusGraduated
	}

	update := model.CurveUpdate{
		TotalSupply:      supply,
		ReserveBalance:   reserve,
		Volume:           th.CumulativeReserveVolume,
		ThresholdReached: th.Triggered,
		FeesEarned:       c.FeesEarned.Add(q.Fee),
		Status:           status,
	}
	// Immutable trade record, committed together with the new state.
	t := &model.Trade{
		ID:           uuid.New().String(),
		CurveID:      c.ID,
		Symbol:       c.Symbol,
		Trader:       req.Trader,
		Side:         q.Side,
		Tokens:       q.Tokens,
		Reserve:      q.Reserve,
		CurveReserve: q.CurveReserve,
		Fee:          q.Fee,
		Price:        averagePrice(q),
		Timestamp:    time.Now().UTC(),
	}
	if err := s.store.CommitTrade(ctx, c, update, t); err != nil {
		return nil, fmt.Errorf("commit trade: %w", err)
	}

	applyUpdate(c, update)
	s.observe(c, q, crossed, time.Since(start))

	slog.Info("trade executed",
		"trade_id", t.ID,
		"trader", t.Trader,
		"curve_id", c.ID,
		"symbol", c.Symbol,
		"side", t.Side,
		"tokens", t.Tokens.String(),
		"reserve", t.Reserve.String(),
		"fee", t.Fee.String(),
		"total_supply", c.TotalSupply.String(),
		"reserve_balance", c.ReserveBalance.String(),
	)
	if crossed {
		slog.Info("volume threshold crossed",
			"curve_id", c.ID,
			"symbol", c.Symbol,
			"volume", c.Volume.String(),
			"threshold", c.VolumeThreshold.String(),
		)
	}

	s.broadcast(c, t, crossed)

	holding := current
	if h, err := s.store.GetHolding(ctx, req.Trader, c.ID); err == nil {
		holding = h
	}
	holding.Symbol = c.Symbol

	return &TradeResponse{
		TradeID:          t.ID,
		Trader:           t.Trader,
		CurveID:          c.ID,
		Symbol:           c.Symbol,
		Side:             t.Side,
		Tokens:           t.Tokens,
		Reserve:          t.Reserve,
		Fee:              t.Fee,
		Price:            t.Price,
		ThresholdCrossed: crossed,
		Curve:            *c,
		Holding:          holding,
	}, nil
}

// GetCurveHistory handles GET /api/v1/curves/{curveID}/history
// Returns the trade ledger to reconstruct price history.
func (s *Service) GetCurveHistory(w http.ResponseWriter, r *http.Request) {
	curveID := chi.URLParam(r, "curveID")
	ctx := r.Context()

	if _, err := s.store.GetCurve(ctx, curveID); err != nil {
		writeErr(w, err)
		return
	}
	trades, err := s.store.GetTradesByCurve(ctx, curveID)
	if err != nil {
		writeError(w, "failed to get curve history", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}

	writeJSON(w, http.StatusOK, trades)
}

// GetHoldings handles GET /api/v1/holdings/{trader}
func (s *Service) GetHoldings(w http.ResponseWriter, r *http.Request) {
	trader := chi.URLParam(r, "trader")

	holdings, err := s.store.GetTraderHoldings(r.Context(), trader)
	if err != nil {
		writeError(w, "failed to load holdings", http.StatusInternalServerError)
		return
	}
	if holdings == nil {
		holdings = []model.Holding{}
	}

	writeJSON(w, http.StatusOK, HoldingsResponse{Trader: trader, Holdings: holdings})
}

// --- Helpers ---

// tradeCurve loads the curve a trade is priced against. A symbol is
// resolved to its ID first; the state itself always comes uncached.
func (s *Service) tradeCurve(ctx context.Context, curveID, symbol string) (*model.Curve, error) {
	if curveID == "" {
		if symbol == "" {
			return nil, fmt.Errorf("%w: curve_id or symbol is required", model.ErrInvalidParameter)
		}
		sym, err := token.ParseSymbol(symbol)
		if err != nil {
			return nil, err
		}
		c, err := s.store.GetCurveBySymbol(ctx, sym)
		if err != nil {
			return nil, err
		}
		curveID = c.ID
	}
	return s.store.GetCurveForUpdate(ctx, curveID)
}

// quote dispatches to the pricer for side and whichever of tokens or
// reserve is set.
func (s *Service) quote(c *model.Curve, side string, tokens, reserve decimal.Decimal) (engine.Quote, error) {
	byTokens, byReserve := !tokens.IsZero(), !reserve.IsZero()
	if byTokens == byReserve {
		return engine.Quote{}, fmt.Errorf("%w: exactly one of tokens or reserve must be set",
			model.ErrInvalidParameter)
	}

	st, fc := c.State(), c.FeeConfig()
	var q engine.Quote
	var err error
	switch strings.ToUpper(side) {
	case model.SideBuy:
		if byTokens {
			q, err = s.pricer.QuoteBuyByTokens(st, tokens, fc)
		} else {
			q, err = s.pricer.QuoteBuyByReserve(st, reserve, fc)
		}
	case model.SideSell:
		if byTokens {
			q, err = s.pricer.QuoteSellByTokens(st, tokens, fc)
		} else {
			q, err = s.pricer.QuoteSellByReserve(st, reserve, fc)
		}
	default:
		return engine.Quote{}, fmt.Errorf("%w: side must be BUY or SELL", model.ErrInvalidParameter)
	}
	if err != nil {
		metrics.QuoteErrors.WithLabelValues(errorClass(err)).Inc()
	}
	return q, err
}

func (s *Service) observe(c *model.Curve, q engine.Quote, crossed bool, elapsed time.Duration) {
	metrics.TradesTotal.WithLabelValues(q.Side).Inc()
	metrics.TradeLatency.WithLabelValues(q.Side).Observe(elapsed.Seconds())
	metrics.CurveVolume.WithLabelValues(c.ID, q.Side).Add(wholeUnits(q.CurveReserve))
	metrics.FeesCollected.WithLabelValues(c.ID).Add(wholeUnits(q.Fee))
	if crossed {
		metrics.ThresholdCrossings.Inc()
		metrics.ActiveCurves.Dec()
	}
}

// broadcast sends real-time updates via WebSocket.
func (s *Service) broadcast(c *model.Curve, t *model.Trade, crossed bool) {
	if s.wsHub == nil {
		return
	}
	spot, _ := s.pricer.SpotPrice(c.State())
	s.wsHub.Broadcast(WSMessage{
		Type:           MsgTradeExecuted,
		CurveID:        c.ID,
		Symbol:         c.Symbol,
		Side:           t.Side,
		Trader:         t.Trader,
		Tokens:         t.Tokens.String(),
		Reserve:        t.Reserve.String(),
		TotalSupply:    c.TotalSupply.String(),
		ReserveBalance: c.ReserveBalance.String(),
		SpotPrice:      spot.String(),
		Volume:         c.Volume.String(),
	})
	if crossed {
		s.wsHub.Broadcast(WSMessage{
			Type:           MsgThresholdCrossed,
			CurveID:        c.ID,
			Symbol:         c.Symbol,
			TotalSupply:    c.TotalSupply.String(),
			ReserveBalance: c.ReserveBalance.String(),
			Volume:         c.Volume.String(),
		})
	}
}

func checkSlippage(req TradeRequest, q engine.Quote) error {
	if q.Side == model.SideBuy {
		if req.MaxReserveIn.IsPositive() && q.Reserve.GreaterThan(req.MaxReserveIn) {
			return fmt.Errorf("%w: costs %s, max %s", ErrSlippage, q.Reserve, req.MaxReserveIn)
		}
		if req.MinTokensOut.IsPositive() && q.Tokens.LessThan(req.MinTokensOut) {
			return fmt.Errorf("%w: mints %s, min %s", ErrSlippage, q.Tokens, req.MinTokensOut)
		}
		return nil
	}
	if req.MinReserveOut.IsPositive() && q.Reserve.LessThan(req.MinReserveOut) {
		return fmt.Errorf("%w: pays %s, min %s", ErrSlippage, q.Reserve, req.MinReserveOut)
	}
	return nil
}

func applyUpdate(c *model.Curve, u model.CurveUpdate) {
	c.TotalSupply = u.TotalSupply
	c.ReserveBalance = u.ReserveBalance
	c.Volume = u.Volume
	c.ThresholdReached = u.ThresholdReached
	c.FeesEarned = u.FeesEarned
	c.Status = u.Status
}

// averagePrice is the trader-facing reserve per token. Reserve and token
// share the same number of decimals, so the ratio is also per whole token.
func averagePrice(q engine.Quote) decimal.Decimal {
	if q.Tokens.IsZero() {
		return decimal.Zero
	}
	return q.Reserve.DivRound(q.Tokens, model.DefaultDecimals)
}

func wholeUnits(v decimal.Decimal) float64 {
	return v.Shift(-model.DefaultDecimals).InexactFloat64()
}

func queryAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", model.ErrInvalidParameter, raw)
	}
	return v, nil
}

func limitReason(err error) string {
	switch {
	case errors.Is(err, limits.ErrBelowMinimumReserve):
		return "minimum_reserve"
	case errors.Is(err, limits.ErrHoldingLimitExceeded):
		return "max_holding"
	case errors.Is(err, limits.ErrInsufficientTokens):
		return "insufficient_tokens"
	}
	return "other"
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, model.ErrDomain):
		return "domain"
	case errors.Is(err, model.ErrPrecisionOverflow):
		return "overflow"
	}
	return "other"
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidParameter),
		errors.Is(err, token.ErrInvalidSymbol),
		errors.Is(err, token.ErrInvalidName),
		errors.Is(err, token.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDomain),
		errors.Is(err, model.ErrPrecisionOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrDuplicateSymbol),
		errors.Is(err, store.ErrStateConflict),
		errors.Is(err, ErrSlippage),
		errors.Is(err, ErrCurveGraduated),
		errors.Is(err, limits.ErrBelowMinimumReserve),
		errors.Is(err, limits.ErrHoldingLimitExceeded),
		errors.Is(err, limits.ErrInsufficientTokens):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeErr writes err with its mapped status. Internal errors are logged
// and not echoed to the client.
func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
		writeError(w, "internal error", status)
		return
	}
	writeError(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
