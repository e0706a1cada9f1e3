package refresher

import (
	"context"
	"time"

	"github.com/neverpay/creditledger/internal/logger"
)

type Producer struct {
	interval  time.Duration
	batchSize int
	ledgers   ledgerService
	logger    logger.Logger
}

func (p *Producer) Produce(ctx context.Context, out chan<- string) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting refresh producer", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Refresh producer stopped by context")
				return

			case <-ticker.C:
				ledgers, err := p.ledgers.ListActive(ctx, p.batchSize)
				if err != nil {
					p.logger.Error("Failed to list active ledgers", "error", err)
					continue
				}

				for _, ledger := range ledgers {
					select {
					case <-ctx.Done():
						p.logger.Debug("Refresh producer stopped by context while sending accounts")
						return
					case out <- ledger.AccountID:
					}
				}
			}
		}
	}()

	return idleStopped
}
