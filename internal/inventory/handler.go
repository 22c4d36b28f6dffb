package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/soletrack/soletrack/internal/platform/httpx"
	"github.com/soletrack/soletrack/internal/platform/pocketbase"
	"github.com/soletrack/soletrack/internal/shared"
)

// Mutations get a tighter rate limit than the global stack.
const (
	mutationRateLimit  = 30
	mutationRateWindow = time.Minute
)

// Handler wires the inventory HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Group(func(gr chi.Router) {
		gr.Use(httprate.Limit(mutationRateLimit, mutationRateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, "rate_limited", "Too Many Requests", "")
			}),
		))
		gr.Post("/add_stock", h.handleAddStock)
		gr.Post("/sale", h.handleSale)
	})
}

// MountMovementRoutes registers the movement audit read model.
func (h *Handler) MountMovementRoutes(r chi.Router) {
	r.Get("/", h.handleMovements)
}

// MountModelRoutes registers the catalog model listing.
func (h *Handler) MountModelRoutes(r chi.Router) {
	r.Get("/", h.handleModels)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.service.ListInventory(r.Context(), ListFilters{
		Model:  q.Get("model"),
		Color:  q.Get("color"),
		Size:   q.Get("size"),
		Gender: q.Get("gender"),
	})
	if err != nil {
		h.respondError(w, "list inventory", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type mutationRequest struct {
	SKU      string `json:"sku" validate:"required"`
	Size     string `json:"size" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	Reason   string `json:"reason"`
}

func (h *Handler) handleAddStock(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeMutation(w, r)
	if !ok {
		return
	}
	result, err := h.service.AddStock(r.Context(), input)
	if err != nil {
		h.respondError(w, "add stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleSale(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeMutation(w, r)
	if !ok {
		return
	}
	result, err := h.service.SellStock(r.Context(), input)
	if err != nil {
		h.respondError(w, "sell stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{
		SKU:  q.Get("sku"),
		Size: q.Get("size"),
		Type: MovementType(q.Get("type")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.service.ListModels(r.Context())
	if err != nil {
		h.respondError(w, "list models", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"models": models})
}

func (h *Handler) decodeMutation(w http.ResponseWriter, r *http.Request) (MutationInput, bool) {
	var req mutationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", "invalid JSON body")
		return MutationInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", err.Error())
		return MutationInput{}, false
	}
	return MutationInput{
		SKU:            req.SKU,
		Size:           req.Size,
		Quantity:       req.Quantity,
		Reason:         req.Reason,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}, true
}

// respondError maps engine errors onto the problem-detail taxonomy. Every
// kind stays machine-distinguishable; nothing is swallowed.
func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	var insufficient *InsufficientStockError
	var inconsistent *ConsistencyError
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "validation", "Validation Failed", err.Error())
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrVariantNotFound):
		httpx.Problem(w, http.StatusNotFound, "not_found", "Not Found", err.Error())
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusConflict, "insufficient_stock", "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "duplicate_request", "Duplicate Request", err.Error())
	case errors.Is(err, pocketbase.ErrUnavailable):
		h.logger.Error(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "store_unavailable", "Store Unavailable", "inventory store is temporarily unavailable, retry the operation")
	case errors.As(err, &inconsistent):
		h.logger.Error(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "consistency", "Consistency Failure", err.Error())
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "internal", "Internal Error", "")
	}
}
