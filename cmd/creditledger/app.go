package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neverpay/creditledger/internal/db"
	"github.com/neverpay/creditledger/internal/handlers"
	"github.com/neverpay/creditledger/internal/logger"
	"github.com/neverpay/creditledger/internal/repository/postgres"
	"github.com/neverpay/creditledger/internal/service/auth/tokenmanager"
	"github.com/neverpay/creditledger/internal/service/oracle"
	"github.com/neverpay/creditledger/internal/service/platform"
	"github.com/neverpay/creditledger/internal/service/refresher"
	"github.com/neverpay/creditledger/internal/service/settlement"
	"github.com/neverpay/creditledger/internal/service/yield"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger    logger.Logger
	refresher *refresher.Refresher
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Parse credit conversion constants
	creditRate, err := decimal.NewFromString(c.CreditRate)
	if err != nil {
		return nil, fmt.Errorf("invalid credit rate %q: %w", c.CreditRate, err)
	}
	baseShare, err := decimal.NewFromString(c.BaseShare)
	if err != nil {
		return nil, fmt.Errorf("invalid base share %q: %w", c.BaseShare, err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	rates := oracle.NewClient(c.OracleAddr, c.OracleAsset, log)

	settlementService := settlement.NewService(settlement.Config{
		Params: yield.Params{
			CreditRate:    creditRate,
			BaseShare:     baseShare,
			AssetDecimals: int32(c.AssetDecimals),
		},
	}, storage, rates, log)

	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	platformService := platform.NewService(platform.DefaultHasher, tokenManager, storage)

	yieldRefresher := refresher.New(refresher.Config{
		TickInterval: c.RefreshInterval,
	}, settlementService, log)

	mux := handlers.NewRouter(settlementService, platformService, log)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     log,
		refresher:  yieldRefresher,
	}, nil
}

// Run starts http server and the yield refresher, closes gracefully on
// context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	refresherStopped := s.refresher.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-refresherStopped

	return err
}
