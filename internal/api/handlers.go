package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/XavierD3728/stockquant/internal/model"
	"github.com/XavierD3728/stockquant/internal/session"
	"github.com/XavierD3728/stockquant/internal/store/sqlite"
)

const defaultAccountID = "default"

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrInvalidParameters),
		errors.Is(err, model.ErrUnknownInstrument),
		errors.Is(err, model.ErrDuplicateStrategy):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientBalance),
		errors.Is(err, model.ErrInsufficientPosition):
		status = http.StatusConflict
	case errors.Is(err, model.ErrPersistence):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// accountID resolves the caller's account from the X-Account-ID header,
// creating it with the configured starting balance on first sight.
func (s *Server) accountID(r *http.Request) (string, error) {
	id := r.Header.Get("X-Account-ID")
	if id == "" {
		id = defaultAccountID
	}
	if _, err := s.ledger.Account(id); err == nil {
		return id, nil
	}

	acc, err := s.ledger.CreateAccount(id, s.initialBalance)
	if err != nil {
		// Lost the creation race; the account now exists.
		if _, lookupErr := s.ledger.Account(id); lookupErr == nil {
			return id, nil
		}
		return "", err
	}
	if s.accounts != nil {
		if err := s.accounts.InsertAccount(r.Context(), *acc); err != nil {
			slog.Error("persist new account", "account", id, "error", err)
		}
	}
	return id, nil
}

func (s *Server) handleQuotes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.feed.Quotes())
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.feed.Get(r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	id, err := s.accountID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sum, err := s.ledger.Summary(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type tradeRequest struct {
	Code     string `json:"code" validate:"required"`
	Side     string `json:"side" validate:"required,oneof=BUY SELL"`
	Quantity int64  `json:"quantity" validate:"gt=0"`
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	id, err := s.accountID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res, err := s.ledger.Execute(r.Context(), id, req.Code, model.Side(req.Side), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleTradeHistory(w http.ResponseWriter, r *http.Request) {
	id, err := s.accountID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.trades == nil {
		// No persistent store wired; serve the in-memory log.
		writeJSON(w, http.StatusOK, s.ledger.Trades(id))
		return
	}

	f := sqlite.TradeFilter{Code: r.URL.Query().Get("code")}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "from: expected RFC3339 timestamp"})
			return
		}
		f.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "to: expected RFC3339 timestamp"})
			return
		}
		f.To = t
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit: expected non-negative integer"})
			return
		}
		f.Limit = n
	}

	trades, err := s.trades.TradesByAccount(r.Context(), id, f)
	if err != nil {
		writeError(w, err)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

type strategyRequest struct {
	Code         string `json:"code" validate:"required"`
	MAShort      int    `json:"ma_short" validate:"gt=0"`
	MALong       int    `json:"ma_long" validate:"gt=0"`
	MomentumDays int    `json:"momentum_days" validate:"gt=0"`
	LotSize      int64  `json:"lot_size" validate:"gt=0"`
}

func (s *Server) handleCreateStrategy(w http.ResponseWriter, r *http.Request) {
	id, err := s.accountID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req strategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	st, err := s.manager.Add(r.Context(), id, req.Code, model.StrategyParams{
		MAShort:      req.MAShort,
		MALong:       req.MALong,
		MomentumDays: req.MomentumDays,
		LotSize:      req.LotSize,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	id, err := s.accountID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	now := time.Now()
	out := make([]strategyStatus, 0)
	for _, st := range s.manager.List(id) {
		out = append(out, strategyStatus{
			Strategy:    st,
			TradedToday: st.TradedOn(now, session.CST),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// strategyStatus decorates a strategy with its same-day trading state so the
// caller can tell whether the scheduler may still act on it today.
type strategyStatus struct {
	model.Strategy
	TradedToday bool `json:"traded_today"`
}

func (s *Server) handleToggleStrategy(w http.ResponseWriter, r *http.Request) {
	id, err := s.accountID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	strategyID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id: expected integer"})
		return
	}
	st, err := s.manager.Toggle(r.Context(), id, strategyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
