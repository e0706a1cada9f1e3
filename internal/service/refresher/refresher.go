// Package refresher periodically folds accrued yield into stored ledgers so
// yield credits survive restarts even if nobody reads the account.
package refresher

import (
	"context"
	"time"

	"github.com/neverpay/creditledger/internal/logger"
	"github.com/neverpay/creditledger/internal/models"
)

const (
	defaultCountWorkers = 4               // Number of workers refreshing accounts
	defaultTickInterval = 1 * time.Minute // Interval between refresh rounds
	defaultBatchSize    = 100             // Active ledgers picked per round
)

type ledgerService interface {
	ListActive(ctx context.Context, limit int) ([]models.Ledger, error)
	RefreshYield(ctx context.Context, accountID string) error
}

type Config struct {
	CountWorkers int
	TickInterval time.Duration
	BatchSize    int
}

type Refresher struct {
	producer *Producer
	consumer *Consumer
}

func New(cfg Config, ledgers ledgerService, logger logger.Logger) *Refresher {
	if cfg.CountWorkers == 0 {
		cfg.CountWorkers = defaultCountWorkers
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}

	return &Refresher{
		producer: &Producer{
			interval:  cfg.TickInterval,
			batchSize: cfg.BatchSize,
			ledgers:   ledgers,
			logger:    logger,
		},
		consumer: &Consumer{
			countWorkers: cfg.CountWorkers,
			ledgers:      ledgers,
			logger:       logger,
		},
	}
}

// Run starts the refresh loop, stops on context cancellation.
// The returned channel closes when both producer and workers finished.
func (r *Refresher) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	accountChan := make(chan string)

	producerStopped := r.producer.Produce(ctx, accountChan)
	consumerStopped := r.consumer.Consume(ctx, accountChan)

	go func() {
		defer close(idleStopped)
		<-producerStopped
		close(accountChan)
		<-consumerStopped
		r.consumer.logger.Debug("Refresher stopped")
	}()

	return idleStopped
}
