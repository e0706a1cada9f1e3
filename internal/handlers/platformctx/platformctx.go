package platformctx

import (
	"context"

	"github.com/neverpay/creditledger/internal/models"
)

type ctxKey string

const platformKey ctxKey = "platform"

// Create a new context with the platform
func New(ctx context.Context, p models.Platform) context.Context {
	return context.WithValue(ctx, platformKey, p)
}

// Extract the platform from the context
func FromContext(ctx context.Context) (models.Platform, bool) {
	p, ok := ctx.Value(platformKey).(models.Platform)
	return p, ok
}
