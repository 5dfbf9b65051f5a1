package matching

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"matchmaker/core/middleware/auth"
	"matchmaker/core/reconcile"
	"matchmaker/feature/matching/engine"
	mreconcile "matchmaker/feature/matching/reconcile"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockMatcher struct {
	mock.Mock
}

func (m *mockMatcher) RequestMatch(ctx context.Context, userID, category string, extra map[string]any) engine.Result {
	return m.Called(userID, category, extra).Get(0).(engine.Result)
}

func (m *mockMatcher) CancelMatch(ctx context.Context, userID string) engine.Result {
	return m.Called(userID).Get(0).(engine.Result)
}

func (m *mockMatcher) GetStatus(ctx context.Context, userID string) engine.StatusResult {
	return m.Called(userID).Get(0).(engine.StatusResult)
}

func (m *mockMatcher) RunBatchPairing(ctx context.Context) engine.BatchResult {
	return m.Called().Get(0).(engine.BatchResult)
}

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) Reconcile(ctx context.Context, category string, dryRun bool) (*mreconcile.Report, error) {
	args := m.Called(category, dryRun)
	report, _ := args.Get(0).(*mreconcile.Report)
	return report, args.Error(1)
}

const apiKey = "op-key"

func setupApp(t *testing.T) (*fiber.App, *mockMatcher, *mockReconciler, string) {
	t.Helper()
	verifier := auth.NewVerifier(auth.Config{Secret: "s3cret"})
	token, err := verifier.Issue("u1", time.Minute)
	require.NoError(t, err)

	matcher := new(mockMatcher)
	reconciler := new(mockReconciler)
	app := fiber.New()
	require.NoError(t, NewFeature(matcher, reconciler, verifier, apiKey, zap.NewNop()).Load(app))
	return app, matcher, reconciler, token
}

func doRequest(t *testing.T, app *fiber.App, method, path, body, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if strings.HasPrefix(path, "/matching/batch") || strings.HasPrefix(path, "/matching/reconcile") {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHandleRequestMatch(t *testing.T) {
	app, matcher, _, token := setupApp(t)

	matcher.On("RequestMatch", "u1", "1", map[string]any{"lang": "en"}).
		Return(engine.Result{Success: true, Status: engine.StatusPaired, RoomID: "R1", PartnerID: "u2"}).Once()

	status, body := doRequest(t, app, "POST", "/matching/request", `{"category":"1","extra":{"lang":"en"}}`, token)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "paired", body["status"])
	assert.Equal(t, "R1", body["roomId"])
	assert.Equal(t, "u2", body["partnerId"])

	matcher.On("RequestMatch", "u1", "2", map[string]any(nil)).
		Return(engine.Result{Error: engine.InsufficientCredit}).Once()
	status, body = doRequest(t, app, "POST", "/matching/request", `{"category":2}`, token)
	assert.Equal(t, fiber.StatusPaymentRequired, status)
	assert.Equal(t, "InsufficientCredit", body["error"])

	status, _ = doRequest(t, app, "POST", "/matching/request", `{"category":"1"}`, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = doRequest(t, app, "POST", "/matching/request", `not json`, token)
	assert.Equal(t, fiber.StatusBadRequest, status)

	matcher.AssertExpectations(t)
}

func TestHandleCancelAndStatus(t *testing.T) {
	app, matcher, _, token := setupApp(t)

	matcher.On("CancelMatch", "u1").Return(engine.Result{Error: engine.NotWaiting})
	status, _ := doRequest(t, app, "DELETE", "/matching/request", "", token)
	assert.Equal(t, fiber.StatusConflict, status)

	room := "R9"
	matcher.On("GetStatus", "u1").Return(engine.StatusResult{MatchedRoomID: &room})
	status, body := doRequest(t, app, "GET", "/matching/status", "", token)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["waiting"])
	assert.Equal(t, "R9", body["matchedRoomId"])
}

func TestHandleRunBatch(t *testing.T) {
	app, matcher, _, _ := setupApp(t)
	matcher.On("RunBatchPairing").Return(engine.BatchResult{PairsCreated: 2, Failures: 1})

	status, body := doRequest(t, app, "POST", "/matching/batch", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(2), body["pairsCreated"])

	req := httptest.NewRequest("POST", "/matching/batch", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandleReconcile(t *testing.T) {
	app, _, reconciler, _ := setupApp(t)

	plan := &reconcile.ReconcilePlan{Scope: "1"}
	reconciler.On("Reconcile", "1", true).Return(&mreconcile.Report{Category: "1", DryRun: true, Plan: plan}, nil)
	status, body := doRequest(t, app, "POST", "/matching/reconcile/1?dry_run=true", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["dryRun"])

	reconciler.On("Reconcile", "2", false).Return(&mreconcile.Report{Category: "2", Plan: plan}, errors.New("add_cache u: boom"))
	status, _ = doRequest(t, app, "POST", "/matching/reconcile/2", "", "")
	assert.Equal(t, fiber.StatusMultiStatus, status)

	status, _ = doRequest(t, app, "POST", "/matching/reconcile/7", "", "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	reconciler.AssertNumberOfCalls(t, "Reconcile", 2)
}

func TestStatusCode(t *testing.T) {
	tests := map[engine.Kind]int{
		"":                           fiber.StatusOK,
		engine.AlreadyWaiting:        fiber.StatusConflict,
		engine.NotWaiting:            fiber.StatusConflict,
		engine.UserNotFound:          fiber.StatusNotFound,
		engine.InsufficientCredit:    fiber.StatusPaymentRequired,
		engine.InvalidCategory:       fiber.StatusBadRequest,
		engine.RoomCreationFailed:    fiber.StatusServiceUnavailable,
		engine.CreditDeductionFailed: fiber.StatusServiceUnavailable,
		engine.InternalError:         fiber.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, StatusCode(kind), string(kind))
	}
}
