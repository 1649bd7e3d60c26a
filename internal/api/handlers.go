package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fadedpez/caminata/internal/types"
	"github.com/fadedpez/caminata/pkg/entities"
	ledgerRepo "github.com/fadedpez/caminata/pkg/repositories/ledger"
	"github.com/fadedpez/caminata/pkg/services/challenge"
	ledgersvc "github.com/fadedpez/caminata/pkg/services/ledger"
	streaksvc "github.com/fadedpez/caminata/pkg/services/streak"
	"github.com/fadedpez/caminata/pkg/services/wallet"
)

const accountHeader = "X-Account-ID"

const defaultHistoryLimit = 50

type amountRequest struct {
	Amount          int64  `json:"amount"`
	Reason          string `json:"reason"`
	ClientRequestID string `json:"client_request_id,omitempty"`
}

type registerRequest struct {
	InitialBalance int64 `json:"initial_balance"`
}

type syncRequest struct {
	Date            string `json:"date"`
	EarnedToday     int64  `json:"earned_today"`
	ClientRequestID string `json:"client_request_id,omitempty"`
}

type recordRequest struct {
	Date string `json:"date"`
}

type seedRequest struct {
	CurrentStreak  int    `json:"current_streak"`
	LongestStreak  int    `json:"longest_streak"`
	LastActiveDate string `json:"last_active_date,omitempty"`
}

type claimRequest struct {
	Year            int    `json:"year,omitempty"`
	Month           int    `json:"month,omitempty"`
	ClientRequestID string `json:"client_request_id,omitempty"`
}

type applyResponse struct {
	Balance       int64 `json:"balance"`
	TransactionID int64 `json:"transaction_id"`
	Idempotent    bool  `json:"idempotent"`
}

type balanceResponse struct {
	Balance     int64 `json:"balance"`
	TotalEarned int64 `json:"total_earned,omitempty"`
}

type errorBody struct {
	Code      types.ErrorCode `json:"code"`
	Message   string          `json:"message"`
	Balance   *int64          `json:"balance,omitempty"`
	Required  *int64          `json:"required,omitempty"`
	Remaining *int64          `json:"remaining,omitempty"`
	Completed *int            `json:"completed,omitempty"`
	Threshold *int            `json:"threshold,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func accountID(r *http.Request) string {
	return r.Header.Get(accountHeader)
}

func (s *Server) handleCoinRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	w2, registered, err := s.coins.RegisterIfMissing(r.Context(), accountID(r), req.InitialBalance)
	recordOperation("coin.register", err)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance":    w2.Balance,
		"registered": registered,
	})
}

func (s *Server) handleCoinEarn(w http.ResponseWriter, r *http.Request) {
	s.handleApply(w, r, "coin.earn", s.coins.Earn)
}

func (s *Server) handleCoinSpend(w http.ResponseWriter, r *http.Request) {
	s.handleApply(w, r, "coin.spend", s.coins.Spend)
}

func (s *Server) handleStampEarn(w http.ResponseWriter, r *http.Request) {
	s.handleApply(w, r, "stamp.earn", s.stamps.Earn)
}

func (s *Server) handleStampSpend(w http.ResponseWriter, r *http.Request) {
	s.handleApply(w, r, "stamp.spend", s.stamps.Spend)
}

// applyFunc is the shared shape of the earn/spend operations
type applyFunc func(ctx context.Context, accountID string, amount int64, reason, clientRequestID string) (*ledgersvc.Result, error)

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request, operation string, apply applyFunc) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := apply(r.Context(), accountID(r), req.Amount, req.Reason, req.ClientRequestID)
	recordOperation(operation, err)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, applyResponse{
		Balance:       result.Entry.BalanceAfter,
		TransactionID: result.Entry.ID,
		Idempotent:    result.Idempotent,
	})
}

func (s *Server) handleCoinBalance(w http.ResponseWriter, r *http.Request) {
	wlt, err := s.coins.Balance(r.Context(), accountID(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: wlt.Balance})
}

func (s *Server) handleStampBalance(w http.ResponseWriter, r *http.Request) {
	wlt, err := s.stamps.Balance(r.Context(), accountID(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: wlt.Balance, TotalEarned: wlt.TotalEarned})
}

func (s *Server) handleCoinHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, types.ErrValidation, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.coins.History(r.Context(), accountID(r), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": historyView(entries)})
}

func (s *Server) handleUseDaily(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.caps.Use(r.Context(), accountID(r), req.Amount, req.Reason, req.ClientRequestID)
	recordOperation("coin.use_daily", err)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance":    result.Balance,
		"used":       result.Used,
		"limit":      result.Limit,
		"remaining":  result.Remaining,
		"idempotent": result.Idempotent,
	})
}

func (s *Server) handleStampSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.stamps.Sync(r.Context(), accountID(r), req.Date, req.EarnedToday, req.ClientRequestID)
	recordOperation("stamp.sync", err)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance": result.Balance,
		"added":   result.Added,
	})
}

func (s *Server) handleStreakRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.streaks.Record(r.Context(), accountID(r), req.Date)
	recordOperation("streak.record", err)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, streakView(result))
}

func (s *Server) handleStreakSeed(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.streaks.Seed(r.Context(), accountID(r), req.CurrentStreak, req.LongestStreak, req.LastActiveDate)
	recordOperation("streak.seed", err)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, streakView(result))
}

func (s *Server) handleStreakGet(w http.ResponseWriter, r *http.Request) {
	streak, err := s.streaks.Get(r.Context(), accountID(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"current_streak":   streak.Current,
		"longest_streak":   streak.Longest,
		"last_active_date": streak.LastActiveDate,
	})
}

func (s *Server) handleChallengeClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decodeBody(w, r, &req) {
		return
	}

	key := chi.URLParam(r, "key")
	result, err := s.challenges.Claim(r.Context(), accountID(r), key, req.Year, req.Month, req.ClientRequestID)
	recordOperation("challenge.claim", err)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	response := map[string]interface{}{
		"key":         result.Key,
		"reward_type": result.Reward,
		"idempotent":  result.Idempotent,
	}
	if result.Reward == entities.RewardCoin {
		response["coins"] = result.Coins
		response["balance"] = result.Balance
	}
	if result.Reward == entities.RewardUnlock {
		response["feature"] = result.Feature
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleUnlocks(w http.ResponseWriter, r *http.Request) {
	features, err := s.challenges.Unlocks(r.Context(), accountID(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if features == nil {
		features = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"unlocks": features})
}

// writeServiceError maps service errors onto the wire taxonomy. Validation
// failures are non-retryable; storage failures surface as retryable
// internal errors with no partial effects behind them.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var insufficient *ledgerRepo.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		remaining := insufficient.Balance
		writeErrorBody(w, http.StatusConflict, errorBody{
			Code:     types.ErrInsufficientFunds,
			Message:  "balance too low for this spend",
			Balance:  &remaining,
			Required: &insufficient.Required,
		})
		return
	}

	var capExceeded *ledgerRepo.CapExceededError
	if errors.As(err, &capExceeded) {
		remaining := capExceeded.Remaining()
		writeErrorBody(w, http.StatusConflict, errorBody{
			Code:      types.ErrCapExceeded,
			Message:   "daily spending limit reached",
			Remaining: &remaining,
		})
		return
	}

	var incomplete *challenge.IncompleteError
	if errors.As(err, &incomplete) {
		writeErrorBody(w, http.StatusConflict, errorBody{
			Code:      types.ErrIncomplete,
			Message:   incomplete.Error(),
			Completed: &incomplete.Completed,
			Threshold: &incomplete.Threshold,
		})
		return
	}

	switch {
	case errors.Is(err, challenge.ErrUnknownKey):
		writeError(w, http.StatusNotFound, types.ErrNotFound, err.Error())
	case errors.Is(err, wallet.ErrNonPositiveAmount),
		errors.Is(err, wallet.ErrNegativeEarned),
		errors.Is(err, wallet.ErrInvalidDateKey),
		errors.Is(err, ledgersvc.ErrZeroDelta),
		errors.Is(err, streaksvc.ErrInvalidDate),
		errors.Is(err, streaksvc.ErrNegativeStreak),
		errors.Is(err, challenge.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, types.ErrValidation, err.Error())
	default:
		s.logger.LogError(types.WrapError(types.ErrInternalError, "unhandled service error", err))
		writeError(w, http.StatusInternalServerError, types.ErrInternalError, "internal error, safe to retry")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, types.ErrValidation, "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code types.ErrorCode, message string) {
	writeErrorBody(w, status, errorBody{Code: code, Message: message})
}

func writeErrorBody(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, errorResponse{Error: body})
}

type entryView struct {
	ID           int64  `json:"id"`
	Delta        int64  `json:"delta"`
	Type         string `json:"type"`
	Reason       string `json:"reason,omitempty"`
	BalanceAfter int64  `json:"balance_after"`
	CreatedAt    string `json:"created_at"`
}

func historyView(entries []*entities.LedgerEntry) []entryView {
	views := make([]entryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, entryView{
			ID:           entry.ID,
			Delta:        entry.Delta,
			Type:         string(entry.Type),
			Reason:       entry.Reason,
			BalanceAfter: entry.BalanceAfter,
			CreatedAt:    entry.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return views
}

func streakView(result *streaksvc.Result) map[string]interface{} {
	return map[string]interface{}{
		"current_streak":   result.Current,
		"longest_streak":   result.Longest,
		"last_active_date": result.LastActiveDate,
		"idempotent":       result.Idempotent,
	}
}
