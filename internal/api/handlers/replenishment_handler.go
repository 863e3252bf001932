package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/service"
	"github.com/andresuchdata/restock/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// OwnerIDHeader carries the authenticated owner, set by the upstream gateway.
const (
	OwnerIDHeader = "X-Owner-ID"
	ownerIDKey    = "owner_id"
)

// ReplenishmentService is what the handler needs from the service layer.
type ReplenishmentService interface {
	GetForecast(ctx context.Context, ownerID, productID string) (*domain.StockForecast, error)
	GetRecommendations(ctx context.Context, ownerID string, opts domain.RecommendationOptions) (*domain.Recommendations, error)
	ExportRecommendations(ctx context.Context, ownerID string, opts domain.RecommendationOptions, format service.ExportFormat) (*service.ExportResult, error)
	ListExports(ctx context.Context, ownerID string) ([]storage.ObjectInfo, error)
	GetReorderRule(ctx context.Context, ownerID, productID string) (*domain.ReorderRule, error)
	SetReorderRule(ctx context.Context, ownerID, productID string, input domain.ReorderRuleInput) (*domain.ReorderRule, error)
}

type ReplenishmentHandler struct {
	service ReplenishmentService
}

func NewReplenishmentHandler(service ReplenishmentService) *ReplenishmentHandler {
	return &ReplenishmentHandler{service: service}
}

// RequireOwner rejects requests without an owner header.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := strings.TrimSpace(c.GetHeader(OwnerIDHeader))
		if ownerID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + OwnerIDHeader + " header"})
			return
		}
		c.Set(ownerIDKey, ownerID)
		c.Next()
	}
}

func ownerID(c *gin.Context) string {
	return c.GetString(ownerIDKey)
}

// GetForecast returns the forecast for a single product
func (h *ReplenishmentHandler) GetForecast(c *gin.Context) {
	productID := strings.TrimSpace(c.Param("product_id"))
	if productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}

	forecast, err := h.service.GetForecast(c.Request.Context(), ownerID(c), productID)
	if err != nil {
		writeError(c, "failed to forecast product", err)
		return
	}

	c.JSON(http.StatusOK, forecast)
}

// GetRecommendations returns the ranked reorder list
func (h *ReplenishmentHandler) GetRecommendations(c *gin.Context) {
	opts, ok := parseRecommendationOptions(c)
	if !ok {
		return
	}

	recs, err := h.service.GetRecommendations(c.Request.Context(), ownerID(c), opts)
	if err != nil {
		writeError(c, "failed to build recommendations", err)
		return
	}

	c.JSON(http.StatusOK, recs)
}

// ExportRecommendations uploads a snapshot of the ranked list
func (h *ReplenishmentHandler) ExportRecommendations(c *gin.Context) {
	opts, ok := parseRecommendationOptions(c)
	if !ok {
		return
	}
	format, ok := service.ParseExportFormat(c.Query("format"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
		return
	}

	result, err := h.service.ExportRecommendations(c.Request.Context(), ownerID(c), opts, format)
	if err != nil {
		writeError(c, "failed to export recommendations", err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *ReplenishmentHandler) ListExports(c *gin.Context) {
	objects, err := h.service.ListExports(c.Request.Context(), ownerID(c))
	if err != nil {
		writeError(c, "failed to list exports", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exports": objects})
}

func (h *ReplenishmentHandler) GetReorderRule(c *gin.Context) {
	rule, err := h.service.GetReorderRule(c.Request.Context(), ownerID(c), c.Param("product_id"))
	if err != nil {
		writeError(c, "failed to fetch reorder rule", err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// SetReorderRule creates or partially updates a reorder rule
func (h *ReplenishmentHandler) SetReorderRule(c *gin.Context) {
	var input domain.ReorderRuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	rule, err := h.service.SetReorderRule(c.Request.Context(), ownerID(c), c.Param("product_id"), input)
	if err != nil {
		writeError(c, "failed to save reorder rule", err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func parseRecommendationOptions(c *gin.Context) (domain.RecommendationOptions, bool) {
	opts := domain.RecommendationOptions{Horizon: domain.HorizonMonth}

	if raw := c.Query("horizon"); raw != "" {
		horizon, ok := domain.ParseHorizon(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "horizon must be week or month"})
			return opts, false
		}
		opts.Horizon = horizon
	}

	if raw := c.Query("min_urgency"); raw != "" {
		urgency, ok := domain.ParseUrgency(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_urgency must be one of critical, high, medium, low"})
			return opts, false
		}
		opts.MinUrgency = urgency
	}

	opts.Limit = parsePositiveInt(c.Query("limit"))
	opts.LowStockOnly, _ = strconv.ParseBool(c.DefaultQuery("low_stock_only", "false"))

	return opts, true
}

func parsePositiveInt(value string) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return 0
}

// writeError maps domain errors onto HTTP status codes.
func writeError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRule):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDataUnavailable), errors.Is(err, storage.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	event := log.Warn()
	if status == http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("owner_id", ownerID(c)).
		Str("path", c.FullPath()).
		Int("status", status).
		Msg(message)

	c.JSON(status, gin.H{"error": message, "details": err.Error()})
}
