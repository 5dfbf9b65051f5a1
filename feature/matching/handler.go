package matching

import (
	"context"

	"matchmaker/core/logger"
	"matchmaker/core/middleware/auth"
	"matchmaker/core/utils"
	"matchmaker/feature/matching/engine"
	"matchmaker/feature/matching/reconcile"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Matcher is the engine surface exposed over HTTP.
type Matcher interface {
	RequestMatch(ctx context.Context, userID, category string, extra map[string]any) engine.Result
	CancelMatch(ctx context.Context, userID string) engine.Result
	GetStatus(ctx context.Context, userID string) engine.StatusResult
	RunBatchPairing(ctx context.Context) engine.BatchResult
}

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	Reconcile(ctx context.Context, category string, dryRun bool) (*reconcile.Report, error)
}

// Handler handles HTTP requests for matchmaking.
type Handler struct {
	matcher    Matcher
	reconciler Reconciler
	verifier   *auth.Verifier
	apiKey     string
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(matcher Matcher, reconciler Reconciler, verifier *auth.Verifier, apiKey string, logger *zap.Logger) *Handler {
	return &Handler{matcher: matcher, reconciler: reconciler, verifier: verifier, apiKey: apiKey, logger: logger}
}

// RegisterRoutes registers the matching routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/matching")

	user := auth.New(h.verifier)
	group.Post("/request", user, h.HandleRequestMatch)
	group.Delete("/request", user, h.HandleCancelMatch)
	group.Get("/status", user, h.HandleGetStatus)

	operator := auth.RequireAPIKey(h.apiKey)
	group.Post("/batch", operator, h.HandleRunBatch)
	group.Post("/reconcile/:category", operator, h.HandleReconcile)
}

type requestMatchBody struct {
	Category any            `json:"category"`
	Extra    map[string]any `json:"extra"`
}

// HandleRequestMatch enqueues the caller or pairs them immediately.
// @Summary Request a match
// @Tags matching
// @Accept json
// @Produce json
// @Success 200 {object} engine.Result
// @Failure 402 {object} engine.Result "Insufficient credit"
// @Failure 409 {object} engine.Result "Already waiting"
// @Router /matching/request [post]
func (h *Handler) HandleRequestMatch(c *fiber.Ctx) error {
	var body requestMatchBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	userID := auth.UserID(c)
	res := h.matcher.RequestMatch(c.UserContext(), userID, utils.ToString(body.Category), body.Extra)
	if !res.Success {
		logger.WithUser(logger.WithRayID(h.logger, c), userID).
			Debug("Match request rejected", zap.String("kind", string(res.Error)))
	}
	return c.Status(StatusCode(res.Error)).JSON(res)
}

// HandleCancelMatch withdraws the caller's request.
// @Summary Cancel a match request
// @Tags matching
// @Produce json
// @Success 200 {object} engine.Result
// @Failure 409 {object} engine.Result "Not waiting"
// @Router /matching/request [delete]
func (h *Handler) HandleCancelMatch(c *fiber.Ctx) error {
	res := h.matcher.CancelMatch(c.UserContext(), auth.UserID(c))
	return c.Status(StatusCode(res.Error)).JSON(res)
}

// HandleGetStatus reports whether the caller is waiting or paired.
// @Summary Get match status
// @Tags matching
// @Produce json
// @Success 200 {object} engine.StatusResult
// @Router /matching/status [get]
func (h *Handler) HandleGetStatus(c *fiber.Ctx) error {
	res := h.matcher.GetStatus(c.UserContext(), auth.UserID(c))
	return c.Status(StatusCode(res.Error)).JSON(res)
}

// HandleRunBatch runs one batch pairing pass.
// @Summary Run batch pairing
// @Tags operator
// @Produce json
// @Success 200 {object} engine.BatchResult
// @Router /matching/batch [post]
func (h *Handler) HandleRunBatch(c *fiber.Ctx) error {
	res := h.matcher.RunBatchPairing(c.UserContext())
	return c.Status(StatusCode(res.Error)).JSON(res)
}

// HandleReconcile reconciles one category. Pass dry_run=true to only plan.
// @Summary Reconcile queue cache and waiting store
// @Tags operator
// @Produce json
// @Param category path string true "Category (1 or 2)"
// @Param dry_run query bool false "Plan only"
// @Success 200 {object} reconcile.Report
// @Router /matching/reconcile/{category} [post]
func (h *Handler) HandleReconcile(c *fiber.Ctx) error {
	category := c.Params("category")
	if !validCategory(category) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": string(engine.InvalidCategory)})
	}

	report, err := h.reconciler.Reconcile(c.UserContext(), category, c.QueryBool("dry_run"))
	if report == nil {
		logger.WithRayID(h.logger, c).Error("Reconciliation failed", zap.String("category", category), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": errText(err)})
	}
	if err != nil {
		// Partial failures are listed in the report.
		return c.Status(fiber.StatusMultiStatus).JSON(report)
	}
	return c.JSON(report)
}

// StatusCode maps a failure kind to its HTTP status.
func StatusCode(kind engine.Kind) int {
	switch kind {
	case "":
		return fiber.StatusOK
	case engine.AlreadyWaiting, engine.NotWaiting:
		return fiber.StatusConflict
	case engine.UserNotFound:
		return fiber.StatusNotFound
	case engine.InsufficientCredit:
		return fiber.StatusPaymentRequired
	case engine.InvalidCategory:
		return fiber.StatusBadRequest
	case engine.RoomCreationFailed, engine.CreditDeductionFailed:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func validCategory(raw string) bool {
	return raw == "1" || raw == "2"
}

func errText(err error) string {
	if err == nil {
		return "reconciliation failed"
	}
	return err.Error()
}
