package refresher

import (
	"context"
	"sync"

	"github.com/neverpay/creditledger/internal/logger"
)

type Consumer struct {
	countWorkers int
	ledgers      ledgerService
	logger       logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan string) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < c.countWorkers; i++ {
		wg.Add(1)
		go func() {
			c.worker(ctx, in)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Refresh consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return

		case accountID, ok := <-in:
			if !ok {
				return
			}

			if err := c.ledgers.RefreshYield(ctx, accountID); err != nil {
				c.logger.Error("Failed to refresh yield", "account", accountID, "error", err)
				continue
			}

			c.logger.Debug("Yield refreshed", "account", accountID)
		}
	}
}
