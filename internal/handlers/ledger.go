package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/neverpay/creditledger/internal/apperrors"
	"github.com/neverpay/creditledger/internal/handlers/platformctx"
	"github.com/neverpay/creditledger/internal/handlers/render"
	"github.com/neverpay/creditledger/internal/logger"
)

func handleDeposit(ledgerService ledgerService, l logger.Logger) http.Handler {
	type request struct {
		Account string `json:"account" validate:"required,ethaddr"`
		Amount  int64  `json:"amount"`
	}

	type response struct {
		Principal   int64 `json:"principal"`
		BaseCredits int64 `json:"base_credits"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		ledger, err := ledgerService.Deposit(r.Context(), req.Account, req.Amount)

		switch {
		case err == nil:
			render.JSON(w, response{Principal: ledger.Principal, BaseCredits: ledger.BaseCredits})
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Amount must be positive", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrUpstreamUnavailable):
			render.ServiceError(w, "Yield source unavailable, try again later", http.StatusServiceUnavailable)
		case errors.Is(err, apperrors.ErrLedgerBusy):
			render.ServiceError(w, "Ledger busy, try again later", http.StatusServiceUnavailable)
		default:
			l.Error("Failed to deposit", "account", req.Account, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleWithdraw(ledgerService ledgerService, l logger.Logger) http.Handler {
	type request struct {
		Account string `json:"account" validate:"required,ethaddr"`
	}

	type response struct {
		WithdrawnAmount int64 `json:"withdrawn_amount"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		withdrawn, err := ledgerService.Withdraw(r.Context(), req.Account)

		switch {
		case err == nil:
			render.JSON(w, response{WithdrawnAmount: withdrawn})
		case errors.Is(err, apperrors.ErrNothingToWithdraw):
			render.ServiceError(w, "No active deposit", http.StatusConflict)
		case errors.Is(err, apperrors.ErrLedgerBusy):
			render.ServiceError(w, "Ledger busy, try again later", http.StatusServiceUnavailable)
		default:
			l.Error("Failed to withdraw", "account", req.Account, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleConsume(ledgerService ledgerService, l logger.Logger) http.Handler {
	type request struct {
		Account  string `json:"account" validate:"required,ethaddr"`
		Amount   int64  `json:"amount"`
		Action   string `json:"action"`
		ActionID string `json:"action_id" validate:"required"`
	}

	type response struct {
		RemainingCredits int64 `json:"remaining_credits"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		platform, ok := platformctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		remaining, err := ledgerService.ConsumeCredits(
			r.Context(), req.Account, req.Amount, req.Action, req.ActionID, platform.ID)

		switch {
		case err == nil:
			render.JSON(w, response{RemainingCredits: remaining})
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Amount must be positive", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrInsufficientCredits):
			render.ServiceError(w, "Insufficient credits", http.StatusPaymentRequired)
		case errors.Is(err, apperrors.ErrLedgerBusy):
			render.ServiceError(w, "Ledger busy, try again later", http.StatusServiceUnavailable)
		default:
			l.Error("Failed to consume credits", "account", req.Account, "action_id", req.ActionID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleCredits(ledgerService ledgerService, l logger.Logger) http.Handler {
	type response struct {
		Credits int64 `json:"credits"`
		Stale   bool  `json:"stale,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := accountFromPath(w, r)
		if !ok {
			return
		}

		credits, stale, err := ledgerService.GetAvailableCredits(r.Context(), account)
		if err != nil {
			l.Error("Failed to get credits", "account", account, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{Credits: credits, Stale: stale})
	})
}

func handleDashboard(ledgerService ledgerService, l logger.Logger) http.Handler {
	type response struct {
		Principal        int64  `json:"principal"`
		DepositedAt      *int64 `json:"deposited_at"`
		BaseCredits      int64  `json:"base_credits"`
		YieldCredits     int64  `json:"yield_credits"`
		AvailableCredits int64  `json:"available_credits"`
		CreditsUsed      int64  `json:"credits_used"`
		CurrentValue     int64  `json:"current_value"`
		YieldEarned      int64  `json:"yield_earned"`
		Stale            bool   `json:"stale,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := accountFromPath(w, r)
		if !ok {
			return
		}

		dashboard, err := ledgerService.GetDashboard(r.Context(), account)
		if err != nil {
			l.Error("Failed to get dashboard", "account", account, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		var depositedAt *int64
		if !dashboard.DepositedAt.IsZero() {
			ts := dashboard.DepositedAt.Unix()
			depositedAt = &ts
		}

		render.JSON(w, response{
			Principal:        dashboard.Principal,
			DepositedAt:      depositedAt,
			BaseCredits:      dashboard.BaseCredits,
			YieldCredits:     dashboard.YieldCredits,
			AvailableCredits: dashboard.AvailableCredits,
			CreditsUsed:      dashboard.CreditsUsed,
			CurrentValue:     dashboard.CurrentValue,
			YieldEarned:      dashboard.YieldEarned,
			Stale:            dashboard.Stale,
		})
	})
}

func handleActivity(ledgerService ledgerService, l logger.Logger) http.Handler {
	type entry struct {
		Op            string    `json:"op"`
		AssetAmount   int64     `json:"asset_amount,omitempty"`
		CreditDelta   int64     `json:"credit_delta"`
		CreditsBefore int64     `json:"credits_before"`
		CreditsAfter  int64     `json:"credits_after"`
		CreatedAt     time.Time `json:"created_at"`
	}

	const (
		defaultLimit = 50
		maxLimit     = 500
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := accountFromPath(w, r)
		if !ok {
			return
		}

		limit := defaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				render.ServiceError(w, "Invalid limit", http.StatusBadRequest)
				return
			}
			if parsed > maxLimit {
				parsed = maxLimit
			}
			limit = parsed
		}

		activities, err := ledgerService.ListActivity(r.Context(), account, limit)
		if err != nil {
			l.Error("Failed to list activity", "account", account, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		entries := make([]entry, 0, len(activities))
		for _, a := range activities {
			entries = append(entries, entry{
				Op:            a.Op,
				AssetAmount:   a.AssetAmount,
				CreditDelta:   a.CreditDelta,
				CreditsBefore: a.CreditsBefore,
				CreditsAfter:  a.CreditsAfter,
				CreatedAt:     a.CreatedAt,
			})
		}

		render.JSON(w, entries)
	})
}

// accountFromPath extracts and validates the {account} path segment
func accountFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	account := r.PathValue("account")
	if err := render.ValidVar(account, "required,ethaddr"); err != nil {
		render.ServiceError(w, "Invalid account address", http.StatusBadRequest)
		return "", false
	}

	return account, true
}
