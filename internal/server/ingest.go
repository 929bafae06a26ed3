package server

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reviewpulse/reviewpulse/internal/rag"
	"github.com/reviewpulse/reviewpulse/internal/store"
)

// IngestHandler serves document upload and listing routes.
type IngestHandler struct {
	Ingestor  *rag.Ingestor
	Registry  *store.Store
	Namespace string
	DataDir   string
}

func (h *IngestHandler) Register(g *echo.Group) {
	g.POST("/ingest", h.ingest)
	g.POST("/ingest/demo", h.ingestDemo)
	g.GET("/documents", h.documents)
}

type ingestRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Text     string `json:"text"`
}

func (h *IngestHandler) ingest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		req = ingestRequest{}
	}

	// Content arrives base64-encoded; clients that skip encoding still get
	// their bytes through untouched.
	var content []byte
	if req.Content != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			decoded = []byte(req.Content)
		}
		content = decoded
	}

	result, err := h.Ingestor.Ingest(c.Request().Context(), namespaceFrom(c, h.Namespace), req.Filename, content, req.Text)
	if err != nil {
		if errors.Is(err, rag.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"status":  "error",
				"message": "Missing filename or content",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"status":  "error",
			"message": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, result)
}

func (h *IngestHandler) ingestDemo(c echo.Context) error {
	ns := namespaceFrom(c, h.Namespace)
	results := h.Ingestor.IngestDemo(c.Request().Context(), ns, h.DataDir)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"results": results,
	})
}

func (h *IngestHandler) documents(c echo.Context) error {
	if h.Registry == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"error": "document registry is not configured",
		})
	}
	ns := namespaceFrom(c, h.Namespace)
	docs, err := h.Registry.ListDocuments(c.Request().Context(), ns)
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"namespace": ns,
		"documents": docs,
	})
}
