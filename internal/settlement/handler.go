package settlement

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/regiomarkt/regiomarkt/internal/mangopay"
	"github.com/regiomarkt/regiomarkt/internal/platform/httpx"
)

// webhookParams is the provider's hook query contract.
type webhookParams struct {
	EventType  string `validate:"required,oneof=PAYIN_NORMAL_SUCCEEDED PAYIN_NORMAL_FAILED PAYOUT_NORMAL_SUCCEEDED PAYOUT_NORMAL_FAILED KYC_SUCCEEDED KYC_FAILED"`
	ResourceID string `validate:"required,max=64"`
}

// Handler exposes the provider webhook endpoint.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// Routes mounts the webhook endpoint. The provider delivers hooks as
// GET with query parameters but is documented to switch to POST, so
// both are accepted.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/hooks/mangopay", h.handleWebhook)
	r.Post("/hooks/mangopay", h.handleWebhook)
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	params := webhookParams{
		EventType:  r.URL.Query().Get("EventType"),
		ResourceID: r.URL.Query().Get("RessourceId"),
	}
	if err := h.validate.Struct(params); err != nil {
		h.logger.Warn("malformed webhook", slog.String("event_type", params.EventType),
			slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Malformed Webhook", "unsupported event type or resource id")
		return
	}

	err := h.service.HandleEvent(r.Context(), mangopay.EventType(params.EventType), params.ResourceID)
	if err != nil {
		var dup *DuplicateTransferError
		if errors.As(err, &dup) {
			// Handled as no-op; the provider must not redeliver.
			httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		h.logger.Error("webhook processing failed",
			slog.String("event_type", params.EventType),
			slog.String("resource_id", params.ResourceID),
			slog.Any("error", err))
		// 5xx triggers the provider's redelivery.
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
