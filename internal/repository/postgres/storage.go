package postgres

import (
	"context"
	"fmt"

	"github.com/neverpay/creditledger/internal/repository"
)

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) Ledger() repository.LedgerRepo {
	return &LedgerRepo{DB: s.db}
}

func (s *Storage) Action() repository.ActionRepo {
	return &ActionRepo{DB: s.db}
}

func (s *Storage) Activity() repository.ActivityRepo {
	return &ActivityRepo{DB: s.db}
}

func (s *Storage) Platform() repository.PlatformRepo {
	return &PlatformRepo{DB: s.db}
}

func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewStorage(tx))

	return err
}
