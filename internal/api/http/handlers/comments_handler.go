package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/swarmdesk/swarmdesk/internal/api/dto"
	"github.com/swarmdesk/swarmdesk/internal/domain"
	"github.com/swarmdesk/swarmdesk/internal/storage"
	apperrors "github.com/swarmdesk/swarmdesk/pkg/util/errorutil"
)

// CommentsHandler maps comment CRUD onto the storage contract.
type CommentsHandler struct {
	store storage.Store
}

// NewCommentsHandler constructs handler.
func NewCommentsHandler(store storage.Store) *CommentsHandler {
	return &CommentsHandler{store: store}
}

// ListComments GET /api/tickets/:id/comments.
func (h *CommentsHandler) ListComments(c *fiber.Ctx) error {
	comments, err := h.store.ListComments(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	if comments == nil {
		return apperrors.NewNotFound("ticket", fiber.Map{"id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": comments})
}

// AddComment POST /api/tickets/:id/comments.
func (h *CommentsHandler) AddComment(c *fiber.Ctx) error {
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Content) == "" {
		return apperrors.NewValidationError("content required", nil)
	}
	commentType, err := domain.ParseCommentType(req.Type)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	comment, err := h.store.AddComment(c.UserContext(), c.Params("id"), storage.CommentSeed{
		Type:     commentType,
		Author:   req.Author,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	if comment == nil {
		return apperrors.NewNotFound("ticket", fiber.Map{"id": c.Params("id")})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": comment})
}

// UpdateComment PATCH /api/tickets/:id/comments/:commentId.
func (h *CommentsHandler) UpdateComment(c *fiber.Ctx) error {
	var req dto.UpdateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	comment, err := h.store.UpdateComment(c.UserContext(), c.Params("id"), c.Params("commentId"), storage.CommentPatch{
		Author:   req.Author,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	if comment == nil {
		return apperrors.NewNotFound("comment", fiber.Map{"id": c.Params("commentId")})
	}
	return c.JSON(fiber.Map{"data": comment})
}

// DeleteComment DELETE /api/tickets/:id/comments/:commentId.
func (h *CommentsHandler) DeleteComment(c *fiber.Ctx) error {
	deleted, err := h.store.DeleteComment(c.UserContext(), c.Params("id"), c.Params("commentId"))
	if err != nil {
		return apperrors.MapError(err)
	}
	if !deleted {
		return apperrors.NewNotFound("comment", fiber.Map{"id": c.Params("commentId")})
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": true}})
}
