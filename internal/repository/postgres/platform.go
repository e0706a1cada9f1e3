package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/neverpay/creditledger/internal/apperrors"
	"github.com/neverpay/creditledger/internal/models"
)

type PlatformRepo struct {
	DB DBTX
}

const createPlatform = `-- name: CreatePlatform
INSERT INTO platforms (id, name, key_hash)
VALUES ($1, $2, $3)
RETURNING id, created_at, name, key_hash
`

func (r *PlatformRepo) Create(ctx context.Context, name string, keyHash string) (models.Platform, error) {
	rows, _ := r.DB.Query(ctx, createPlatform, uuid.New(), name, keyHash)
	platform, err := pgx.CollectOneRow(rows, rowToPlatform)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			return platform, apperrors.ErrPlatformAlreadyExists
		}
		return platform, fmt.Errorf("db error: %w", err)
	}

	return platform, nil
}

const getPlatformByName = `-- name: GetPlatformByName
SELECT id, created_at, name, key_hash FROM platforms
WHERE name = $1
`

func (r *PlatformRepo) GetByName(ctx context.Context, name string) (models.Platform, error) {
	rows, _ := r.DB.Query(ctx, getPlatformByName, name)
	platform, err := pgx.CollectOneRow(rows, rowToPlatform)

	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return platform, apperrors.ErrPlatformNotFound
	}

	return platform, err
}

const getPlatformByID = `-- name: GetPlatformByID
SELECT id, created_at, name, key_hash FROM platforms
WHERE id = $1
`

func (r *PlatformRepo) GetByID(ctx context.Context, id uuid.UUID) (models.Platform, error) {
	rows, _ := r.DB.Query(ctx, getPlatformByID, id)
	platform, err := pgx.CollectOneRow(rows, rowToPlatform)

	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return platform, apperrors.ErrPlatformNotFound
	}

	return platform, err
}

const countPlatforms = `-- name: CountPlatforms
SELECT COUNT(*) FROM platforms
`

func (r *PlatformRepo) Count(ctx context.Context) (int64, error) {
	var count int64

	err := r.DB.QueryRow(ctx, countPlatforms).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

func rowToPlatform(row pgx.CollectableRow) (models.Platform, error) {
	var p models.Platform
	err := row.Scan(&p.ID, &p.CreatedAt, &p.Name, &p.KeyHash)
	return p, err
}
