package handlers

import (
	"net/http"

	"github.com/neverpay/creditledger/internal/handlers/render"
	"github.com/neverpay/creditledger/internal/logger"
)

func handleStats(ledgerService ledgerService, l logger.Logger) http.Handler {
	type response struct {
		TotalPrincipal       int64 `json:"total_principal"`
		TotalValue           int64 `json:"total_value"`
		TotalYieldGenerated  int64 `json:"total_yield_generated"`
		TotalCreditsIssued   int64 `json:"total_credits_issued"`
		TotalCreditsUsed     int64 `json:"total_credits_used"`
		TotalUniquePlatforms int64 `json:"total_unique_platforms"`
		Stale                bool  `json:"stale,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := ledgerService.GetPlatformStats(r.Context())
		if err != nil {
			l.Error("Failed to get platform stats", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{
			TotalPrincipal:       stats.TotalPrincipal,
			TotalValue:           stats.TotalValue,
			TotalYieldGenerated:  stats.TotalYieldGenerated,
			TotalCreditsIssued:   stats.TotalCreditsIssued,
			TotalCreditsUsed:     stats.TotalCreditsUsed,
			TotalUniquePlatforms: stats.TotalUniquePlatforms,
			Stale:                stats.Stale,
		})
	})
}

func handleHealth() http.Handler {
	type response struct {
		Status string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, response{Status: "ok"})
	})
}
