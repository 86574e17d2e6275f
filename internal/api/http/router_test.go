package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swarmdesk/swarmdesk/internal/api/http/handlers"
	"github.com/swarmdesk/swarmdesk/internal/auth"
	"github.com/swarmdesk/swarmdesk/internal/storage/file"
)

func newTestApp(t *testing.T) (*fiber.App, *auth.TokenManager) {
	t.Helper()
	dir := t.TempDir()

	store, err := file.New(filepath.Join(dir, "tickets.json"), filepath.Join(dir, "backups"), 3, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	tokens := auth.NewTokenManager("test-secret", 30)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:          handlers.NewHealthHandler("swarmdesk", "test", "file", store),
		Tickets:         handlers.NewTicketsHandler(store, nil, nil),
		Comments:        handlers.NewCommentsHandler(store),
		BugReports:      handlers.NewBugReportsHandler(store, nil),
		Stats:           handlers.NewStatsHandler(store, nil),
		APIKeys:         handlers.NewAPIKeysHandler(store),
		AdminMiddleware: auth.NewAdminMiddleware(tokens),
	})
	return app, tokens
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string, header map[string]string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed), "response should be JSON: %s", raw)
	}
	return resp.StatusCode, parsed
}

func TestHealthLive(t *testing.T) {
	app, _ := newTestApp(t)
	status, _ := doJSON(t, app, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	status, created := doJSON(t, app, http.MethodPost, "/api/tickets",
		`{"route":"/checkout","description":"checkout page blank","priority":"high"}`, nil)
	require.Equal(t, http.StatusCreated, status)
	data := created["data"].(map[string]any)
	id := data["id"].(string)
	assert.Equal(t, "open", data["status"])
	assert.Equal(t, "high", data["priority"])

	status, got := doJSON(t, app, http.MethodGet, "/api/tickets/"+id, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "/checkout", got["data"].(map[string]any)["route"])

	status, updated := doJSON(t, app, http.MethodPatch, "/api/tickets/"+id,
		`{"status":"fixed","priority":null,"namespace":"frontend"}`, nil)
	require.Equal(t, http.StatusOK, status)
	patched := updated["data"].(map[string]any)
	assert.Equal(t, "fixed", patched["status"])
	assert.Nil(t, patched["priority"], "null in the patch body clears the field")
	assert.Equal(t, "frontend", patched["namespace"])

	status, _ = doJSON(t, app, http.MethodDelete, "/api/tickets/"+id, "", nil)
	require.Equal(t, http.StatusOK, status)

	status, missing := doJSON(t, app, http.MethodGet, "/api/tickets/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", missing["error"].(map[string]any)["code"])
}

func TestCreateTicketRejectsUnknownStatus(t *testing.T) {
	app, _ := newTestApp(t)
	status, body := doJSON(t, app, http.MethodPost, "/api/tickets",
		`{"route":"/checkout","status":"resolved"}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])
}

func TestCommentsOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	_, created := doJSON(t, app, http.MethodPost, "/api/tickets", `{"route":"/checkout"}`, nil)
	id := created["data"].(map[string]any)["id"].(string)

	status, comment := doJSON(t, app, http.MethodPost, "/api/tickets/"+id+"/comments",
		`{"type":"ai","content":"triage note","metadata":{"model":"triage-v2"}}`, nil)
	require.Equal(t, http.StatusCreated, status)
	commentData := comment["data"].(map[string]any)
	assert.Equal(t, "anonymous", commentData["author"])
	commentID := commentData["id"].(string)

	status, edited := doJSON(t, app, http.MethodPatch, "/api/tickets/"+id+"/comments/"+commentID,
		`{"content":"confirmed","metadata":{"confidence":0.9}}`, nil)
	require.Equal(t, http.StatusOK, status)
	editedData := edited["data"].(map[string]any)
	assert.Equal(t, "confirmed", editedData["content"])
	metadata := editedData["metadata"].(map[string]any)
	assert.Equal(t, "triage-v2", metadata["model"])

	status, _ = doJSON(t, app, http.MethodDelete, "/api/tickets/"+id+"/comments/"+commentID, "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestBugReportOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	status, ack := doJSON(t, app, http.MethodPost, "/api/bug-reports",
		`{"route":"/checkout","f12Errors":"TypeError: cart is undefined"}`, nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "submitted", ack["status"])
	assert.NotEmpty(t, ack["id"])
	// The ack shape deliberately excludes internal ticket fields.
	assert.NotContains(t, ack, "swarmActions")

	status, body := doJSON(t, app, http.MethodPost, "/api/bug-reports",
		`{"route":"/checkout"}`, map[string]string{"X-API-Key": "stk_bogus"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_API_KEY", body["error"].(map[string]any)["code"])
}

func TestAdminRoutesRequireToken(t *testing.T) {
	app, tokens := newTestApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/api/admin/keys", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])

	token, _, err := tokens.GenerateToken("ops")
	require.NoError(t, err)

	// File backend cannot persist keys; the gap surfaces as 501, not 404.
	status, body = doJSON(t, app, http.MethodGet, "/api/admin/keys", "",
		map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusNotImplemented, status)
	assert.Equal(t, "NOT_SUPPORTED", body["error"].(map[string]any)["code"])
}

func TestStatsOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	_, _ = doJSON(t, app, http.MethodPost, "/api/tickets", `{"route":"/a","priority":"high"}`, nil)
	_, _ = doJSON(t, app, http.MethodPost, "/api/tickets", `{"route":"/b","status":"closed"}`, nil)

	status, stats := doJSON(t, app, http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, status)
	data := stats["data"].(map[string]any)
	assert.Equal(t, float64(2), data["total"])
}
