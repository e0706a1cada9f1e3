package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neverpay/creditledger/internal/handlers/middleware"
	"github.com/neverpay/creditledger/internal/logger"
	"github.com/neverpay/creditledger/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	ledgerService ledgerService,
	platformService platformService,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(platformService)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	api := http.NewServeMux()

	api.Handle("POST /platform/register", handleRegister(platformService, logger))
	api.Handle("POST /platform/token", handleToken(platformService, logger))

	api.Handle("POST /ledger/deposit", withAuth(handleDeposit(ledgerService, logger)))
	api.Handle("POST /ledger/withdraw", withAuth(handleWithdraw(ledgerService, logger)))
	api.Handle("POST /ledger/consume", withAuth(handleConsume(ledgerService, logger)))

	api.Handle("GET /ledger/{account}/credits", handleCredits(ledgerService, logger))
	api.Handle("GET /ledger/{account}/dashboard", handleDashboard(ledgerService, logger))
	api.Handle("GET /ledger/{account}/activity", handleActivity(ledgerService, logger))
	api.Handle("GET /stats", handleStats(ledgerService, logger))
	api.Handle("GET /health", handleHealth())

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("GET /metrics", promhttp.Handler())

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type ledgerService interface {
	// Deposit amount (smallest units) for the account
	// Has to return apperrors.ErrInvalidAmount for non-positive amounts and
	// apperrors.ErrUpstreamUnavailable while the rate feed is down
	Deposit(ctx context.Context, accountID string, amount int64) (models.Ledger, error)

	// Withdraw the whole position, revoking all credits
	// Has to return apperrors.ErrNothingToWithdraw for empty accounts
	Withdraw(ctx context.Context, accountID string) (int64, error)

	// ConsumeCredits deducts credits idempotently by actionID
	// Has to return apperrors.ErrInsufficientCredits when short
	ConsumeCredits(ctx context.Context, accountID string, amount int64, label string, actionID string, platformID uuid.UUID) (int64, error)

	GetAvailableCredits(ctx context.Context, accountID string) (int64, bool, error)
	GetDashboard(ctx context.Context, accountID string) (models.Dashboard, error)
	GetPlatformStats(ctx context.Context) (models.PlatformStats, error)
	ListActivity(ctx context.Context, accountID string, limit int) ([]models.Activity, error)
}

type platformService interface {
	// Register platform by name, returns the one-time API key
	// Has to return apperrors.ErrPlatformAlreadyExists if name is taken
	Register(ctx context.Context, name string) (models.Platform, string, error)

	// IssueToken exchanges (name, api key) for an access token
	// Has to return apperrors.ErrPlatformNotFound on bad credentials
	IssueToken(ctx context.Context, name string, key string) (string, time.Time, error)

	// Get request and return the platform if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.Platform, error)
}
