package middleware

import (
	"context"
	"net/http"

	"github.com/neverpay/creditledger/internal/handlers/platformctx"
	"github.com/neverpay/creditledger/internal/handlers/render"
	"github.com/neverpay/creditledger/internal/models"
)

type authService interface {
	Auth(ctx context.Context, r *http.Request) (models.Platform, error)
}

func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			platform, err := as.Auth(r.Context(), r)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := platformctx.New(r.Context(), platform)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
