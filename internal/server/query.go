package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/reviewpulse/reviewpulse/internal/rag"
)

// QueryHandler serves the question-answering routes.
type QueryHandler struct {
	Pipeline   *rag.Pipeline
	Decomposer *rag.Decomposer
	Comparer   *rag.Comparer
	Namespace  string
}

func (h *QueryHandler) Register(g *echo.Group) {
	g.POST("/query", h.query)
	g.POST("/decompose", h.decompose)
	g.POST("/compare", h.compare)
}

type queryRequest struct {
	Query string `json:"query"`
}

func (h *QueryHandler) query(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil || req.Query == "" {
		return c.JSON(http.StatusBadRequest, rag.QueryResult{
			Answer:    "Missing query",
			Sources:   []string{},
			RequestID: uuid.New().String(),
		})
	}

	result := h.Pipeline.Answer(c.Request().Context(), req.Query, namespaceFrom(c, h.Namespace))
	if result.ConfigError || result.Err != "" {
		return c.JSON(http.StatusInternalServerError, result)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *QueryHandler) decompose(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil || req.Query == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":     "Missing query",
			"requestId": uuid.New().String(),
		})
	}

	ns := namespaceFrom(c, h.Namespace)
	result := h.Decomposer.Run(c.Request().Context(), req.Query, ns)
	if result.Err != "" {
		return c.JSON(http.StatusInternalServerError, result)
	}
	return c.JSON(http.StatusOK, result)
}

type compareRequest struct {
	Query          string   `json:"query"`
	DocIDs         []string `json:"docIds"`
	ComparisonType string   `json:"comparisonType"`
}

func (h *QueryHandler) compare(c echo.Context) error {
	var req compareRequest
	if err := c.Bind(&req); err != nil {
		req = compareRequest{}
	}

	result, err := h.Comparer.Compare(c.Request().Context(), req.Query, req.DocIDs, req.ComparisonType, namespaceFrom(c, h.Namespace))
	if err != nil {
		if errors.Is(err, rag.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"answer":    "Comparison requires a query and at least 2 documents",
				"sources":   []string{},
				"requestId": uuid.New().String(),
			})
		}
		return err
	}
	if result.Err != "" {
		return c.JSON(http.StatusInternalServerError, result)
	}
	return c.JSON(http.StatusOK, result)
}
