package server

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reviewpulse/reviewpulse/internal/store"
	"github.com/reviewpulse/reviewpulse/internal/vectorstore"
)

// AdminHandler serves destructive maintenance routes behind a shared token.
type AdminHandler struct {
	Index      vectorstore.Index
	Registry   *store.Store
	Namespace  string
	AdminToken string

	logger *log.Logger
}

func (h *AdminHandler) Register(g *echo.Group) {
	h.logger = log.New(log.Writer(), "[ADMIN] ", log.LstdFlags)
	g.POST("/admin/reset", h.reset)
}

type resetRequest struct {
	Namespace string `json:"namespace"`
}

// reset wipes one namespace from the vector index and the registry. The
// token check runs before the body is even parsed.
func (h *AdminHandler) reset(c echo.Context) error {
	if h.AdminToken == "" || c.Request().Header.Get("x-admin-token") != h.AdminToken {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"ok":    false,
			"error": "unauthorized",
		})
	}

	var req resetRequest
	if err := c.Bind(&req); err != nil {
		req = resetRequest{}
	}
	ns := req.Namespace
	if ns == "" {
		ns = namespaceFrom(c, h.Namespace)
	}
	if ns == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"ok":    false,
			"error": "missing namespace",
		})
	}

	if err := h.Index.DeleteNamespace(c.Request().Context(), ns); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"ok":    false,
			"error": err.Error(),
		})
	}
	if h.Registry != nil {
		if n, err := h.Registry.DeleteNamespace(c.Request().Context(), ns); err != nil {
			h.logger.Printf("registry cleanup failed for %q: %v", ns, err)
		} else {
			h.logger.Printf("cleared %d registry rows for %q", n, ns)
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":      true,
		"cleared": map[string]string{"namespace": ns},
	})
}
