package matching

import (
	"matchmaker/core/middleware/auth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	handler *Handler
}

// NewFeature creates the matching feature.
func NewFeature(matcher Matcher, reconciler Reconciler, verifier *auth.Verifier, apiKey string, logger *zap.Logger) *Feature {
	return &Feature{handler: NewHandler(matcher, reconciler, verifier, apiKey, logger)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "matching"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
