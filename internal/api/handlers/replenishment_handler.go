package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/replenish/backend-go/internal/domain"
	"github.com/andresuchdata/replenish/backend-go/internal/service"
)

const maxSnapshotBytes = 32 << 20

type ReplenishmentHandler struct {
	service  *service.ReplenishmentService
	maxBytes int64
}

func NewReplenishmentHandler(service *service.ReplenishmentService) *ReplenishmentHandler {
	return &ReplenishmentHandler{service: service, maxBytes: maxSnapshotBytes}
}

type reconcilePathRequest struct {
	Path string `json:"path"`
}

// respondError maps service and parse errors to status codes.
func respondError(c *gin.Context, err error) {
	var schemaErr *domain.SchemaError
	var notFound *domain.NotFoundError

	switch {
	case errors.As(err, &schemaErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   schemaErr.Error(),
			"source":  schemaErr.Source,
			"columns": schemaErr.Columns,
		})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.Is(err, service.ErrNoReport):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoThresholds):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// GetThresholds returns the active table and its metadata.
func (h *ReplenishmentHandler) GetThresholds(c *gin.Context) {
	records, err := h.service.ThresholdRecords()
	if err != nil {
		respondError(c, err)
		return
	}
	info, _ := h.service.ThresholdsInfo()
	c.JSON(http.StatusOK, gin.H{
		"info":       info,
		"thresholds": records,
	})
}

func (h *ReplenishmentHandler) ReloadThresholds(c *gin.Context) {
	info, err := h.service.ReloadThresholds(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Reconcile accepts a multipart "file", a JSON {"path": ...} naming a file in
// the snapshot directory, or the snapshot as raw delimited text.
func (h *ReplenishmentHandler) Reconcile(c *gin.Context) {
	if c.Request.ContentLength > h.maxBytes {
		h.respondTooLarge(c)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	ctx := c.Request.Context()

	var (
		report *domain.ReplenishmentReport
		err    error
	)
	contentType := c.ContentType()
	switch {
	case strings.HasPrefix(contentType, "multipart/"):
		fileHeader, ferr := c.FormFile("file")
		if isTooLarge(ferr) {
			h.respondTooLarge(c)
			return
		}
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
			return
		}
		f, ferr := fileHeader.Open()
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not open uploaded file"})
			return
		}
		defer f.Close()
		report, err = h.service.ReconcileUpload(ctx, fileHeader.Filename, f)

	case contentType == "application/json":
		var req reconcilePathRequest
		if berr := c.ShouldBindJSON(&req); berr != nil {
			if isTooLarge(berr) {
				h.respondTooLarge(c)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		report, err = h.service.ReconcilePath(ctx, req.Path)

	default:
		body, rerr := io.ReadAll(c.Request.Body)
		if isTooLarge(rerr) {
			h.respondTooLarge(c)
			return
		}
		if rerr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
			return
		}
		report, err = h.service.ReconcileText(ctx, string(body))
	}

	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func (h *ReplenishmentHandler) respondTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error": fmt.Sprintf("snapshot exceeds %d bytes", h.maxBytes),
	})
}

func (h *ReplenishmentHandler) GetLatestReport(c *gin.Context) {
	report, err := h.service.LatestReport()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetStockVsMin serves ?location= (empty for all) and ?top= (0 for all).
func (h *ReplenishmentHandler) GetStockVsMin(c *gin.Context) {
	top := 0
	if raw := strings.TrimSpace(c.Query("top")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "top must be a non-negative integer"})
			return
		}
		top = n
	}

	rows, err := h.service.StockVsMin(strings.TrimSpace(c.Query("location")), top)
	if err != nil {
		respondError(c, err)
		return
	}
	if rows == nil {
		rows = []domain.StockVsMinRow{}
	}
	c.JSON(http.StatusOK, rows)
}
