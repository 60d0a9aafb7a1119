package resolution

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snomedx/snomedx/internal/domain/extract"
)

// Handler exposes the resolution engine over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates a new resolution handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers resolution routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/extract", h.Extract)
}

// ExtractResponse is the body returned by Extract.
type ExtractResponse struct {
	Reports []*ReportResult `json:"reports"`
}

// Extract handles POST /api/v1/extract. The request body is one XML export;
// the response carries the resolved reports. No files are written.
func (h *Handler) Extract(c echo.Context) error {
	reports, err := h.svc.ProcessDocument(c.Request().Context(), c.Request().Body)
	if err != nil {
		if errors.Is(err, extract.ErrEmptyDocument) {
			return echo.NewHTTPError(http.StatusBadRequest, "request body must be an XML document")
		}
		if errors.Is(err, extract.ErrInvalidDocument) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if reports == nil {
		reports = []*ReportResult{}
	}
	return c.JSON(http.StatusOK, ExtractResponse{Reports: reports})
}
