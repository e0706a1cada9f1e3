package refresher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/neverpay/creditledger/internal/logger"
	"github.com/neverpay/creditledger/internal/models"
)

// fakeLedgers records which accounts were refreshed
type fakeLedgers struct {
	mu        sync.Mutex
	active    []models.Ledger
	refreshed []string
}

func (f *fakeLedgers) ListActive(ctx context.Context, limit int) ([]models.Ledger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if limit > len(f.active) {
		limit = len(f.active)
	}
	return f.active[:limit], nil
}

func (f *fakeLedgers) RefreshYield(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refreshed = append(f.refreshed, accountID)
	return nil
}

func (f *fakeLedgers) refreshedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refreshed)
}

func TestRefresher(t *testing.T) {
	t.Parallel()

	t.Run("refreshes active accounts every tick", func(t *testing.T) {
		ledgers := &fakeLedgers{active: []models.Ledger{
			{AccountID: "0xa", Principal: 100},
			{AccountID: "0xb", Principal: 200},
		}}

		r := New(Config{TickInterval: 10 * time.Millisecond}, ledgers, logger.NewNoOpLogger())

		ctx, cancel := context.WithCancel(t.Context())
		stopped := r.Run(ctx)

		require.Eventually(t, func() bool {
			return ledgers.refreshedCount() >= 2
		}, 2*time.Second, 5*time.Millisecond, "both accounts should be refreshed")

		cancel()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Fatal("refresher did not stop after context cancellation")
		}

		require.Contains(t, ledgers.refreshed, "0xa")
		require.Contains(t, ledgers.refreshed, "0xb")
	})

	t.Run("stops cleanly with no active accounts", func(t *testing.T) {
		ledgers := &fakeLedgers{}

		r := New(Config{TickInterval: 5 * time.Millisecond}, ledgers, logger.NewNoOpLogger())

		ctx, cancel := context.WithCancel(t.Context())
		stopped := r.Run(ctx)

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Fatal("refresher did not stop after context cancellation")
		}
	})
}
