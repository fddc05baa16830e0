package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/remarkbridge/internal/hook"
	"github.com/remarkbridge/internal/tracker"
)

// errorBody is the error payload for 404 and 412 responses.
type errorBody struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// providerHeaders maps the provider-identifying event-type header to the
// provider name. Header lookup is case-insensitive because Go canonicalizes
// header keys (X-GitHub-Event arrives as X-Github-Event).
var providerHeaders = map[string]string{
	"x-github-event": "github",
	"x-gitlab-event": "gitlab",
}

// handleWebhook processes one webhook delivery synchronously and returns the
// accumulated log lines as a JSON array. Lookup failures map to 404,
// payload-shape violations to 412; everything else is a steady-state outcome
// reported with 200.
func (s *Server) handleWebhook(c echo.Context) error {
	provider, eventType := detectProvider(c.Request().Header)

	deliveryID := uuid.NewString()
	logger := s.logger.With().
		Str("delivery", deliveryID).
		Str("provider", provider).
		Str("event", eventType).
		Logger()

	if provider == "" {
		logger.Info().Msg("delivery carries no recognized event header")
		return c.JSON(http.StatusOK, []string{"ignoring delivery without a recognized event header"})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		logger.Error().Err(err).Msg("failed to read webhook body")
		return c.JSON(http.StatusPreconditionFailed, errorBody{
			Title:   "Precondition Failed",
			Message: "failed to read request body",
		})
	}

	if err := s.schemas.Validate(provider, eventType, body); err != nil {
		logger.Info().Err(err).Msg("payload failed schema validation")
		return c.JSON(http.StatusPreconditionFailed, errorBody{
			Title:   "Precondition Failed",
			Message: err.Error(),
		})
	}

	lines, err := s.processor.Process(c.Request().Context(), hook.Delivery{
		Provider:  provider,
		EventType: eventType,
		Body:      body,
		Params:    c.QueryParams(),
	}, logger)
	if err != nil {
		var notFound *tracker.NotFoundError
		if errors.As(err, &notFound) {
			logger.Info().Err(err).Msg("delivery aborted")
			return c.JSON(http.StatusNotFound, errorBody{Title: "Not Found", Message: notFound.Error()})
		}
		var precondition *hook.PreconditionError
		if errors.As(err, &precondition) {
			logger.Info().Err(err).Msg("delivery aborted")
			return c.JSON(http.StatusPreconditionFailed, errorBody{Title: "Precondition Failed", Message: precondition.Error()})
		}
		logger.Error().Err(err).Msg("delivery failed")
		return c.JSON(http.StatusInternalServerError, errorBody{Title: "Internal Error", Message: err.Error()})
	}

	return c.JSON(http.StatusOK, lines)
}

// detectProvider finds the provider-identifying header and returns the
// provider name with the provider-specific event type it carries.
func detectProvider(header http.Header) (provider, eventType string) {
	for key, values := range header {
		name, ok := providerHeaders[strings.ToLower(key)]
		if !ok || len(values) == 0 {
			continue
		}
		return name, values[0]
	}
	return "", ""
}
