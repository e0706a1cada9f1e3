package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/neverpay/creditledger/internal/logger"
	"github.com/neverpay/creditledger/internal/repository/postgres"
	"github.com/neverpay/creditledger/internal/service/auth/tokenmanager"
	"github.com/neverpay/creditledger/internal/service/oracle"
	"github.com/neverpay/creditledger/internal/service/platform"
	"github.com/neverpay/creditledger/internal/service/settlement"
	"github.com/neverpay/creditledger/internal/testutil"
)

// stubOracle serves a fixed rate for handler tests
type stubOracle struct {
	rate decimal.Decimal
}

func (o *stubOracle) ExchangeRate(ctx context.Context) (oracle.Rate, error) {
	return oracle.Rate{Value: o.rate}, nil
}

func Test_LedgerHandlers(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	const account = "0x1111111111111111111111111111111111111111"

	// Run http server with the full router and production services attached
	withTx := func(t *testing.T, fn func(url string, token string)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			noop := logger.NewNoOpLogger()

			feed := &stubOracle{rate: decimal.NewFromInt(1)}
			ledgerService := settlement.NewService(settlement.Config{}, storage, feed, noop)

			tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"})
			require.NoError(t, err, "token manager should be created without errors")
			platformService := platform.NewService(platform.DefaultHasher, tokens, storage)

			srv := httptest.NewServer(NewRouter(ledgerService, platformService, noop))
			defer srv.Close()

			// Register a platform and issue an access token for protected routes
			_, key, err := platformService.Register(t.Context(), "test-platform")
			require.NoError(t, err)
			token, _, err := platformService.IssueToken(t.Context(), "test-platform", key)
			require.NoError(t, err)

			fn(srv.URL, token)
		})
	}

	doJSON := func(t *testing.T, method string, url string, token string, data string) (*http.Response, string) {
		t.Helper()

		var body io.Reader
		if data != "" {
			body = strings.NewReader(data)
		}
		req, err := http.NewRequest(method, url, body)
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		return resp, string(raw)
	}

	t.Run("deposit ok", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			data := fmt.Sprintf(`{"account": "%s", "amount": 100000000}`, account)
			resp, body := doJSON(t, "POST", url+"/api/ledger/deposit", token, data)

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"principal": 100000000,
					"base_credits": 4000
				}`, body)
		})
	})

	t.Run("deposit without token", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			data := fmt.Sprintf(`{"account": "%s", "amount": 100000000}`, account)
			resp, body := doJSON(t, "POST", url+"/api/ledger/deposit", "", data)

			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Unauthorized"
				}`, body)
		})
	})

	t.Run("deposit invalid account", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			data := `{"account": "not-an-address", "amount": 100000000}`
			resp, body := doJSON(t, "POST", url+"/api/ledger/deposit", token, data)

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, "validation_failed")
		})
	})

	t.Run("deposit non positive amount", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			data := fmt.Sprintf(`{"account": "%s", "amount": 0}`, account)
			resp, body := doJSON(t, "POST", url+"/api/ledger/deposit", token, data)

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Amount must be positive"
				}`, body)
		})
	})

	t.Run("withdraw ok", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			data := fmt.Sprintf(`{"account": "%s", "amount": 100000000}`, account)
			resp, body := doJSON(t, "POST", url+"/api/ledger/deposit", token, data)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			resp, body = doJSON(t, "POST", url+"/api/ledger/withdraw", token, fmt.Sprintf(`{"account": "%s"}`, account))

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"withdrawn_amount": 100000000
				}`, body)
		})
	})

	t.Run("withdraw empty account", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			resp, body := doJSON(t, "POST", url+"/api/ledger/withdraw", token, fmt.Sprintf(`{"account": "%s"}`, account))

			require.Equalf(t, http.StatusConflict, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "No active deposit"
				}`, body)
		})
	})

	t.Run("consume ok and idempotent", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			data := fmt.Sprintf(`{"account": "%s", "amount": 100000000}`, account)
			resp, body := doJSON(t, "POST", url+"/api/ledger/deposit", token, data)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			consume := fmt.Sprintf(`{"account": "%s", "amount": 100, "action": "api_call", "action_id": "act-1"}`, account)
			resp, body = doJSON(t, "POST", url+"/api/ledger/consume", token, consume)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `{"remaining_credits": 3900}`, body)

			// Replay must return the same result without deducting again
			resp, body = doJSON(t, "POST", url+"/api/ledger/consume", token, consume)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `{"remaining_credits": 3900}`, body)
		})
	})

	t.Run("consume insufficient credits", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			data := fmt.Sprintf(`{"account": "%s", "amount": 100000000}`, account)
			resp, body := doJSON(t, "POST", url+"/api/ledger/deposit", token, data)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			consume := fmt.Sprintf(`{"account": "%s", "amount": 5000, "action": "api_call", "action_id": "act-1"}`, account)
			resp, body = doJSON(t, "POST", url+"/api/ledger/consume", token, consume)

			require.Equalf(t, http.StatusPaymentRequired, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Insufficient credits"
				}`, body)
		})
	})

	t.Run("consume missing action id", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			consume := fmt.Sprintf(`{"account": "%s", "amount": 100, "action": "api_call"}`, account)
			resp, body := doJSON(t, "POST", url+"/api/ledger/consume", token, consume)

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, "validation_failed")
		})
	})

	t.Run("get credits", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			data := fmt.Sprintf(`{"account": "%s", "amount": 100000000}`, account)
			resp, body := doJSON(t, "POST", url+"/api/ledger/deposit", token, data)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			resp, body = doJSON(t, "GET", url+"/api/ledger/"+account+"/credits", "", "")

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `{"credits": 4000}`, body)
		})
	})

	t.Run("get credits invalid account", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			resp, body := doJSON(t, "GET", url+"/api/ledger/nope/credits", "", "")

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Invalid account address"
				}`, body)
		})
	})

	t.Run("get dashboard", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			data := fmt.Sprintf(`{"account": "%s", "amount": 100000000}`, account)
			resp, body := doJSON(t, "POST", url+"/api/ledger/deposit", token, data)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			resp, body = doJSON(t, "GET", url+"/api/ledger/"+account+"/dashboard", "", "")
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var dashboard struct {
				Principal        int64  `json:"principal"`
				DepositedAt      *int64 `json:"deposited_at"`
				BaseCredits      int64  `json:"base_credits"`
				AvailableCredits int64  `json:"available_credits"`
				CurrentValue     int64  `json:"current_value"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &dashboard))
			require.Equal(t, int64(100000000), dashboard.Principal)
			require.Equal(t, int64(4000), dashboard.BaseCredits)
			require.Equal(t, int64(4000), dashboard.AvailableCredits)
			require.Equal(t, int64(100000000), dashboard.CurrentValue)
			require.NotNil(t, dashboard.DepositedAt, "deposited_at should be set for active account")
		})
	})

	t.Run("dashboard for unknown account", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			resp, body := doJSON(t, "GET", url+"/api/ledger/"+account+"/dashboard", "", "")

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"principal": 0,
					"deposited_at": null,
					"base_credits": 0,
					"yield_credits": 0,
					"available_credits": 0,
					"credits_used": 0,
					"current_value": 0,
					"yield_earned": 0
				}`, body)
		})
	})

	t.Run("get activity", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			data := fmt.Sprintf(`{"account": "%s", "amount": 100000000}`, account)
			resp, body := doJSON(t, "POST", url+"/api/ledger/deposit", token, data)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			consume := fmt.Sprintf(`{"account": "%s", "amount": 100, "action": "api_call", "action_id": "act-1"}`, account)
			resp, body = doJSON(t, "POST", url+"/api/ledger/consume", token, consume)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			resp, body = doJSON(t, "GET", url+"/api/ledger/"+account+"/activity", "", "")
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var entries []struct {
				Op          string `json:"op"`
				CreditDelta int64  `json:"credit_delta"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &entries))
			require.Len(t, entries, 2)
			require.Equal(t, "consume", entries[0].Op, "newest entry first")
			require.Equal(t, int64(-100), entries[0].CreditDelta)
			require.Equal(t, "deposit", entries[1].Op)
		})
	})

	t.Run("get activity bad limit", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			resp, body := doJSON(t, "GET", url+"/api/ledger/"+account+"/activity?limit=abc", "", "")

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, "Invalid limit")
		})
	})

	t.Run("get activity oversized limit is capped", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			data := fmt.Sprintf(`{"account": "%s", "amount": 100000000}`, account)
			resp, body := doJSON(t, "POST", url+"/api/ledger/deposit", token, data)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			resp, body = doJSON(t, "GET", url+"/api/ledger/"+account+"/activity?limit=1000000", "", "")

			require.Equalf(t, http.StatusOK, resp.StatusCode, "huge limit is capped, not rejected. Body: %s", body)

			var entries []struct {
				Op string `json:"op"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &entries))
			require.Len(t, entries, 1)
		})
	})

	t.Run("get stats", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			data := fmt.Sprintf(`{"account": "%s", "amount": 100000000}`, account)
			resp, body := doJSON(t, "POST", url+"/api/ledger/deposit", token, data)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			resp, body = doJSON(t, "GET", url+"/api/stats", "", "")

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"total_principal": 100000000,
					"total_value": 100000000,
					"total_yield_generated": 0,
					"total_credits_issued": 4000,
					"total_credits_used": 0,
					"total_unique_platforms": 1
				}`, body)
		})
	})

	t.Run("health", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			resp, body := doJSON(t, "GET", url+"/api/health", "", "")

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `{"status": "ok"}`, body)
		})
	})

	t.Run("metrics exposed", func(t *testing.T) {
		withTx(t, func(url string, token string) {
			resp, body := doJSON(t, "GET", url+"/metrics", "", "")

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, "creditledger_")
		})
	})
}
