// Package platform manages registered API consumers: registration, API key
// verification and access token issuance.
package platform

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/neverpay/creditledger/internal/apperrors"
	"github.com/neverpay/creditledger/internal/models"
	"github.com/neverpay/creditledger/internal/repository"
	"github.com/neverpay/creditledger/internal/service/auth/tokenmanager"
)

type KeyHasher interface {
	Hash(key string) (string, error)
	Compare(hashedKey string, key string) error
}

type Service struct {
	hasher  KeyHasher
	tokens  *tokenmanager.TokenManager
	storage repository.Storage
}

func NewService(hasher KeyHasher, tokens *tokenmanager.TokenManager, storage repository.Storage) *Service {
	if hasher == nil {
		hasher = DefaultHasher
	}

	return &Service{
		hasher:  hasher,
		tokens:  tokens,
		storage: storage,
	}
}

// Register creates the platform and returns its API key. The key is shown
// exactly once, only its bcrypt hash is stored.
func (s *Service) Register(ctx context.Context, name string) (models.Platform, string, error) {
	var platform models.Platform

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return platform, "", fmt.Errorf("can't generate api key. Err: %w", err)
	}
	key := hex.EncodeToString(b)

	hash, err := s.hasher.Hash(key)
	if err != nil {
		return platform, "", fmt.Errorf("can't hash api key. Err: %w", err)
	}

	platform, err = s.storage.Platform().Create(ctx, name, hash)
	if err != nil {
		return platform, "", err
	}

	return platform, key, nil
}

// IssueToken exchanges a valid (name, api key) pair for a short-lived JWT.
// A wrong key reports ErrPlatformNotFound, not which part was wrong.
func (s *Service) IssueToken(ctx context.Context, name string, key string) (string, time.Time, error) {
	platform, err := s.storage.Platform().GetByName(ctx, name)
	if err != nil {
		return "", time.Time{}, err
	}

	if err := s.hasher.Compare(platform.KeyHash, key); err != nil {
		return "", time.Time{}, apperrors.ErrPlatformNotFound
	}

	return s.tokens.Generate(platform.ID)
}

// Auth authenticates the request by its bearer token
func (s *Service) Auth(ctx context.Context, r *http.Request) (models.Platform, error) {
	var platform models.Platform

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return platform, errors.New("missing bearer token")
	}

	platformID, err := s.tokens.Parse(token)
	if err != nil {
		return platform, err
	}

	return s.storage.Platform().GetByID(ctx, platformID)
}
