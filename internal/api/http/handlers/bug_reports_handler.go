package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/swarmdesk/swarmdesk/internal/api/dto"
	"github.com/swarmdesk/swarmdesk/internal/domain"
	"github.com/swarmdesk/swarmdesk/internal/events"
	"github.com/swarmdesk/swarmdesk/internal/storage"
	apperrors "github.com/swarmdesk/swarmdesk/pkg/util/errorutil"
)

// BugReportsHandler serves the public, rate-limited ingestion path.
type BugReportsHandler struct {
	store      storage.Store
	dispatcher events.Dispatcher
}

// NewBugReportsHandler constructs handler.
func NewBugReportsHandler(store storage.Store, dispatcher events.Dispatcher) *BugReportsHandler {
	return &BugReportsHandler{store: store, dispatcher: dispatcher}
}

// CreateBugReport POST /api/bug-reports. The acknowledgment deliberately
// carries no internal ticket fields.
func (h *BugReportsHandler) CreateBugReport(c *fiber.Ctx) error {
	var req dto.BugReportRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	priority, err := domain.ParsePriority(req.Priority)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	report := storage.BugReport{
		Route:        req.Route,
		F12Errors:    req.F12Errors,
		ServerErrors: req.ServerErrors,
		Description:  req.Description,
		Priority:     priority,
		NetworkID:    c.IP(),
	}
	if key := c.Get("X-API-Key"); key != "" {
		report.APIKey = &key
	}

	ack, err := h.store.CreateBugReport(c.UserContext(), report)
	if err != nil {
		return apperrors.MapError(err)
	}

	if h.dispatcher != nil {
		_ = h.dispatcher.Publish(c.UserContext(), events.Event{
			Type:     events.EventBugReportReceived,
			TicketID: ack.ID,
			Payload: events.BugReportReceivedPayload{
				Route:         report.Route,
				Priority:      report.Priority,
				Authenticated: report.APIKey != nil,
			},
		})
	}
	return c.Status(fiber.StatusCreated).JSON(ack)
}
