package handlers

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/swarmdesk/swarmdesk/internal/api/dto"
	"github.com/swarmdesk/swarmdesk/internal/cache"
	"github.com/swarmdesk/swarmdesk/internal/domain"
	"github.com/swarmdesk/swarmdesk/internal/events"
	"github.com/swarmdesk/swarmdesk/internal/storage"
	apperrors "github.com/swarmdesk/swarmdesk/pkg/util/errorutil"
)

var jsonNull = []byte("null")

// TicketsHandler maps ticket CRUD onto the storage contract.
type TicketsHandler struct {
	store      storage.Store
	stats      *cache.StatsCache
	dispatcher events.Dispatcher
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(store storage.Store, stats *cache.StatsCache, dispatcher events.Dispatcher) *TicketsHandler {
	return &TicketsHandler{store: store, stats: stats, dispatcher: dispatcher}
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.store.ListTickets(c.UserContext(), filter)
	if err != nil {
		return apperrors.MapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return c.JSON(fiber.Map{"data": tickets})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.store.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	if ticket == nil {
		return apperrors.NewNotFound("ticket", fiber.Map{"id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": ticket})
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	seed := storage.TicketSeed{
		Route:          req.Route,
		F12Errors:      req.F12Errors,
		ServerErrors:   req.ServerErrors,
		Description:    req.Description,
		Status:         status,
		Priority:       priority,
		Namespace:      req.Namespace,
		RelatedTickets: req.RelatedTickets,
	}
	for _, action := range req.SwarmActions {
		seed.SwarmActions = append(seed.SwarmActions, domain.SwarmAction{
			Action: action.Action,
			Result: action.Result,
		})
	}
	for _, comment := range req.Comments {
		commentType, err := domain.ParseCommentType(comment.Type)
		if err != nil {
			return apperrors.NewValidationError(err.Error(), nil)
		}
		seed.Comments = append(seed.Comments, domain.Comment{
			Type:     commentType,
			Author:   comment.Author,
			Content:  comment.Content,
			Metadata: comment.Metadata,
		})
	}

	ticket, err := h.store.CreateTicket(c.UserContext(), seed)
	if err != nil {
		return apperrors.MapError(err)
	}

	h.stats.Invalidate(c.UserContext())
	h.publish(c, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			Route:    ticket.Route,
			Status:   ticket.Status,
			Priority: ticket.Priority,
		},
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticket})
}

// UpdateTicket PATCH /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	patch, err := buildTicketPatch(req)
	if err != nil {
		return err
	}

	ticket, err := h.store.UpdateTicket(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return apperrors.MapError(err)
	}
	if ticket == nil {
		return apperrors.NewNotFound("ticket", fiber.Map{"id": c.Params("id")})
	}

	h.stats.Invalidate(c.UserContext())
	h.publish(c, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		Payload: events.TicketUpdatedPayload{
			Status:   ticket.Status,
			Priority: ticket.Priority,
		},
	})
	return c.JSON(fiber.Map{"data": ticket})
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	deleted, err := h.store.DeleteTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return apperrors.MapError(err)
	}
	if !deleted {
		return apperrors.NewNotFound("ticket", fiber.Map{"id": c.Params("id")})
	}
	h.stats.Invalidate(c.UserContext())
	h.publish(c, events.Event{Type: events.EventTicketDeleted, TicketID: c.Params("id")})
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": true}})
}

// AddSwarmAction POST /api/tickets/:id/actions.
func (h *TicketsHandler) AddSwarmAction(c *fiber.Ctx) error {
	var req dto.SwarmActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Action) == "" {
		return apperrors.NewValidationError("action required", nil)
	}

	ticket, err := h.store.AddSwarmAction(c.UserContext(), c.Params("id"), req.Action, req.Result)
	if err != nil {
		return apperrors.MapError(err)
	}
	if ticket == nil {
		return apperrors.NewNotFound("ticket", fiber.Map{"id": c.Params("id")})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticket})
}

func (h *TicketsHandler) publish(c *fiber.Ctx, event events.Event) {
	if h.dispatcher == nil {
		return
	}
	_ = h.dispatcher.Publish(c.UserContext(), event)
}

func parseTicketFilter(c *fiber.Ctx) (storage.TicketFilter, error) {
	var filter storage.TicketFilter
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error(), nil)
		}
		filter.Status = &status
	}
	if raw := c.Query("excludeStatus"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error(), nil)
		}
		filter.ExcludeStatus = &status
	}
	if raw := c.Query("priority"); raw != "" {
		priority, err := domain.ParsePriority(raw)
		if err != nil || priority == nil {
			return filter, apperrors.NewValidationError("invalid priority filter", nil)
		}
		filter.Priority = priority
	}
	if raw := c.Query("route"); raw != "" {
		filter.Route = &raw
	}
	return filter, nil
}

func buildTicketPatch(req dto.UpdateTicketRequest) (storage.TicketPatch, error) {
	var patch storage.TicketPatch
	if req.Status != nil {
		status, err := domain.ParseStatus(*req.Status)
		if err != nil {
			return patch, apperrors.NewValidationError(err.Error(), nil)
		}
		patch.Status = &status
	}
	if len(req.Priority) > 0 {
		if bytes.Equal(bytes.TrimSpace(req.Priority), jsonNull) {
			patch.Priority = storage.Clear[domain.TicketPriority]()
		} else {
			var raw string
			if err := json.Unmarshal(req.Priority, &raw); err != nil {
				return patch, apperrors.NewValidationError("priority must be a string or null", nil)
			}
			priority, err := domain.ParsePriority(raw)
			if err != nil || priority == nil {
				return patch, apperrors.NewValidationError("invalid priority", nil)
			}
			patch.Priority = storage.Assign(*priority)
		}
	}
	if len(req.Namespace) > 0 {
		if bytes.Equal(bytes.TrimSpace(req.Namespace), jsonNull) {
			patch.Namespace = storage.Clear[string]()
		} else {
			var raw string
			if err := json.Unmarshal(req.Namespace, &raw); err != nil {
				return patch, apperrors.NewValidationError("namespace must be a string or null", nil)
			}
			patch.Namespace = storage.Assign(raw)
		}
	}
	patch.RelatedTickets = req.RelatedTickets
	patch.Description = req.Description
	patch.F12Errors = req.F12Errors
	patch.ServerErrors = req.ServerErrors
	patch.Route = req.Route
	return patch, nil
}
