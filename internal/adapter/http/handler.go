package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/couchcryptid/xanthos-vis-service/internal/dashboard"
	"github.com/couchcryptid/xanthos-vis-service/internal/domain"
	"github.com/couchcryptid/xanthos-vis-service/internal/observability"
)

// Dashboard is the use-case surface the API serves.
type Dashboard interface {
	Upload(ctx context.Context, filename string, data []byte) (*dashboard.DatasetInfo, error)
	Describe(ctx context.Context, id string) (*dashboard.DatasetInfo, error)
	Delete(ctx context.Context, id string) error
	ThroughPeriods(ctx context.Context, id, start string) ([]domain.PeriodOption, error)
	Aggregate(ctx context.Context, id string, q dashboard.Query) (*domain.AggregateTable, error)
	Hydrograph(ctx context.Context, id, key string, q dashboard.Query) (*domain.Series, error)
	Select(ctx context.Context, id string, req dashboard.SelectRequest) (*dashboard.SelectResponse, error)
	Catalog() *domain.Catalog
}

// Handler handles HTTP requests for the dashboard.
type Handler struct {
	svc            Dashboard
	maxUploadBytes int64
	mapStyle       string
	mapboxToken    string
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(svc Dashboard, cfg RouterConfig, metrics *observability.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		svc:            svc,
		maxUploadBytes: cfg.MaxUploadBytes,
		mapStyle:       cfg.MapStyle,
		mapboxToken:    cfg.MapboxToken,
		metrics:        metrics,
		logger:         logger,
	}
}

// Upload handles POST /v1/datasets. The file arrives as a multipart "file"
// field, as a JSON body {filename, contents} where contents may be a data
// URL, or as a raw body named by the filename query parameter.
func (h *Handler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	filename, data, err := readUpload(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.metrics.Uploads.WithLabelValues("too_large").Inc()
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := h.svc.Upload(c.Request.Context(), filename, data)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func readUpload(c *gin.Context) (string, []byte, error) {
	switch contentType := c.ContentType(); {
	case strings.HasPrefix(contentType, "multipart/"):
		header, err := c.FormFile("file")
		if err != nil {
			return "", nil, fmt.Errorf("file field: %w", err)
		}
		f, err := header.Open()
		if err != nil {
			return "", nil, fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		return header.Filename, data, err

	case contentType == gin.MIMEJSON:
		var body struct {
			Filename string `json:"filename" binding:"required"`
			Contents string `json:"contents" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			return "", nil, err
		}
		return body.Filename, []byte(body.Contents), nil

	default:
		filename := c.Query("filename")
		if filename == "" {
			return "", nil, errors.New("filename parameter is required")
		}
		data, err := io.ReadAll(c.Request.Body)
		return filename, data, err
	}
}

// GetDataset handles GET /v1/datasets/:id.
func (h *Handler) GetDataset(c *gin.Context) {
	info, err := h.svc.Describe(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// DeleteDataset handles DELETE /v1/datasets/:id.
func (h *Handler) DeleteDataset(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetThroughPeriods handles GET /v1/datasets/:id/through-periods.
func (h *Handler) GetThroughPeriods(c *gin.Context) {
	opts, err := h.svc.ThroughPeriods(c.Request.Context(), c.Param("id"), c.Query("start"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"periods": opts})
}

// GetAggregate handles GET /v1/datasets/:id/aggregate.
func (h *Handler) GetAggregate(c *gin.Context) {
	q, err := bindQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	table, err := h.svc.Aggregate(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// GetHydrograph handles GET /v1/datasets/:id/hydrograph.
func (h *Handler) GetHydrograph(c *gin.Context) {
	q, err := bindQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	series, err := h.svc.Hydrograph(c.Request.Context(), c.Param("id"), c.Query("id"), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

type selectionBody struct {
	dashboard.Query
	View  string          `json:"view"`
	Reset bool            `json:"reset"`
	Event *SelectionEvent `json:"event"`
}

// PostSelection handles POST /v1/datasets/:id/selection.
func (h *Handler) PostSelection(c *gin.Context) {
	var body selectionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid selection body: %v", err)})
		return
	}

	scope, err := selectionScope(body.View, body.Area)
	if err != nil {
		h.writeError(c, err)
		return
	}
	sel, err := body.Event.Selection(scope)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.svc.Select(c.Request.Context(), c.Param("id"), dashboard.SelectRequest{
		Query:     body.Query,
		View:      body.View,
		Selection: sel,
		Reset:     body.Reset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetBasins handles GET /v1/reference/basins.
func (h *Handler) GetBasins(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Catalog().BasinFeatures())
}

// GetCountries handles GET /v1/reference/countries.
func (h *Handler) GetCountries(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Catalog().CountryFeatures())
}

// GetMapConfig handles GET /v1/map/config.
func (h *Handler) GetMapConfig(c *gin.Context) {
	resp := gin.H{
		"style":        h.mapStyle,
		"default_zoom": domain.DefaultZoom,
	}
	if h.mapboxToken != "" {
		resp["access_token"] = h.mapboxToken
	}
	c.JSON(http.StatusOK, resp)
}

// bindQuery reads the dashboard controls from the query string. Months may
// be repeated or comma-separated.
func bindQuery(c *gin.Context) (dashboard.Query, error) {
	var q dashboard.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		return q, fmt.Errorf("invalid query: %w", err)
	}
	var months []string
	for _, m := range q.Months {
		for _, part := range strings.Split(m, ",") {
			if part = strings.TrimSpace(part); part != "" {
				months = append(months, part)
			}
		}
	}
	q.Months = months
	return q, nil
}

// selectionScope reports what the ids of a map event identify: grid cells
// in the gridded view, otherwise the displayed area type.
func selectionScope(view, area string) (domain.AreaType, error) {
	mode, err := domain.ParseViewMode(view)
	if err != nil {
		return "", err
	}
	if mode == domain.ViewGridded {
		return domain.AreaCell, nil
	}
	if area == "" {
		return domain.AreaBasin, nil
	}
	areaType, err := domain.ParseAreaType(area)
	if err != nil {
		return "", err
	}
	if areaType == domain.AreaCell {
		return domain.AreaBasin, nil
	}
	return areaType, nil
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "route", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var convErr *domain.UnsupportedUnitConversionError
	switch {
	case errors.Is(err, domain.ErrDatasetNotFound), errors.Is(err, domain.ErrAreaNotFound):
		return http.StatusNotFound
	case errors.As(err, &convErr), errors.Is(err, domain.ErrSelectionRequired):
		return http.StatusUnprocessableEntity
	case dashboard.IsUserError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
