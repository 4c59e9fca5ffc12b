package http

import (
	"errors"
	"net/http"

	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store      domain.CategoryStore
	categories []domain.Category
	byTable    map[string]domain.Category
	logger     zerolog.Logger
}

// NewHandler creates a new HTTP handler over the category store
func NewHandler(store domain.CategoryStore, categories []domain.Category, logger zerolog.Logger) *Handler {
	byTable := make(map[string]domain.Category, len(categories))
	for _, c := range categories {
		byTable[c.Table] = c
	}
	return &Handler{
		store:      store,
		categories: categories,
		byTable:    byTable,
		logger:     logger.With().Str("component", "http").Logger(),
	}
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CategorySummary describes one configured category
type CategorySummary struct {
	Header string `json:"header"`
	Label  string `json:"label"`
	Table  string `json:"table"`
	Foods  int64  `json:"foods"`
}

// NutrientValue is one nutrient of a food, in milligrams
type NutrientValue struct {
	Name    string  `json:"name"`
	MG      float64 `json:"mg"`
	Inexact bool    `json:"inexact"`
	Text    string  `json:"text"`
}

// FoodResponse is one food's record in a category
type FoodResponse struct {
	Food      string          `json:"food"`
	Category  string          `json:"category"`
	Nutrients []NutrientValue `json:"nutrients"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "fdcscrape",
		"version": "1.0.0",
	})
}

// ListCategories returns the configured categories with their row counts
func (h *Handler) ListCategories(c *gin.Context) {
	summaries := make([]CategorySummary, 0, len(h.categories))
	for _, cat := range h.categories {
		count, err := h.store.Count(c.Request.Context(), cat.Table)
		if err != nil {
			h.respondError(c, err)
			return
		}
		summaries = append(summaries, CategorySummary{
			Header: cat.Header,
			Label:  cat.Label(),
			Table:  cat.Table,
			Foods:  count,
		})
	}
	c.JSON(http.StatusOK, gin.H{"categories": summaries})
}

// GetCategory returns the dense table of one category
func (h *Handler) GetCategory(c *gin.Context) {
	table := c.Param("table")
	if _, ok := h.byTable[table]; !ok {
		h.respondError(c, domain.ErrUnknownCategory)
		return
	}

	result, err := h.store.Table(c.Request.Context(), table)
	if errors.Is(err, domain.ErrUnknownCategory) {
		// configured but never written
		c.JSON(http.StatusOK, &domain.CategoryTable{
			Name:    table,
			Columns: []string{domain.FoodColumn},
			Rows:    []map[string]string{},
		})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	if result.Rows == nil {
		result.Rows = []map[string]string{}
	}
	c.JSON(http.StatusOK, result)
}

// GetFood returns one food's record in a category
func (h *Handler) GetFood(c *gin.Context) {
	table := c.Param("table")
	food := c.Param("food")
	if food == "" {
		h.respondError(c, domain.ErrInvalidRequest)
		return
	}
	if _, ok := h.byTable[table]; !ok {
		h.respondError(c, domain.ErrUnknownCategory)
		return
	}

	record, err := h.store.Read(c.Request.Context(), table, food)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownCategory) {
			err = domain.ErrFoodNotFound
		}
		h.respondError(c, err)
		return
	}

	resp := FoodResponse{Food: record.Food, Category: table, Nutrients: make([]NutrientValue, 0, len(record.Attributes))}
	for _, a := range record.Attributes {
		resp.Nutrients = append(resp.Nutrients, NutrientValue{
			Name:    a.Name,
			MG:      a.Value.MG,
			Inexact: !a.Value.IsExact(),
			Text:    a.Value.String(),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownCategory):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown_category", Message: err.Error()})
	case errors.Is(err, domain.ErrFoodNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "food_not_found", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
	default:
		h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
}
