package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/swarmdesk/swarmdesk/internal/api/dto"
	"github.com/swarmdesk/swarmdesk/internal/storage"
	apperrors "github.com/swarmdesk/swarmdesk/pkg/util/errorutil"
)

// APIKeysHandler manages API keys on the SQL-backed stores. The file
// backend answers these routes with a not-implemented error.
type APIKeysHandler struct {
	store storage.Store
}

// NewAPIKeysHandler constructs handler.
func NewAPIKeysHandler(store storage.Store) *APIKeysHandler {
	return &APIKeysHandler{store: store}
}

// CreateAPIKey POST /api/admin/keys.
func (h *APIKeysHandler) CreateAPIKey(c *fiber.Ctx) error {
	var req dto.CreateAPIKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	key, err := h.store.CreateAPIKey(c.UserContext(), strings.TrimSpace(req.Name))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": key})
}

// ListAPIKeys GET /api/admin/keys.
func (h *APIKeysHandler) ListAPIKeys(c *fiber.Ctx) error {
	keys, err := h.store.ListAPIKeys(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": keys})
}

// RevokeAPIKey DELETE /api/admin/keys/:key.
func (h *APIKeysHandler) RevokeAPIKey(c *fiber.Ctx) error {
	revoked, err := h.store.RevokeAPIKey(c.UserContext(), c.Params("key"))
	if err != nil {
		return apperrors.MapError(err)
	}
	if !revoked {
		return apperrors.NewNotFound("api key", nil)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"revoked": true}})
}
