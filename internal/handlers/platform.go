package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/neverpay/creditledger/internal/apperrors"
	"github.com/neverpay/creditledger/internal/handlers/render"
	"github.com/neverpay/creditledger/internal/logger"
)

func handleRegister(platformService platformService, l logger.Logger) http.Handler {
	type request struct {
		Name string `json:"name" validate:"required,min=3"`
	}

	type response struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		APIKey string `json:"api_key"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		platform, key, err := platformService.Register(r.Context(), req.Name)

		switch {
		case err == nil:
			render.JSON(w, response{ID: platform.ID.String(), Name: platform.Name, APIKey: key})
		case errors.Is(err, apperrors.ErrPlatformAlreadyExists):
			render.ServiceError(w, "Platform name already taken", http.StatusConflict)
		default:
			l.Error("Failed to register platform", "name", req.Name, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleToken(platformService platformService, l logger.Logger) http.Handler {
	type request struct {
		Name   string `json:"name" validate:"required"`
		APIKey string `json:"api_key" validate:"required"`
	}

	type response struct {
		AccessToken string    `json:"access_token"`
		ExpiresAt   time.Time `json:"expires_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		token, expiresAt, err := platformService.IssueToken(r.Context(), req.Name, req.APIKey)

		switch {
		case err == nil:
			render.JSON(w, response{AccessToken: token, ExpiresAt: expiresAt})
		case errors.Is(err, apperrors.ErrPlatformNotFound):
			render.ServiceError(w, "Unknown platform or wrong key", http.StatusUnauthorized)
		default:
			l.Error("Failed to issue token", "name", req.Name, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
