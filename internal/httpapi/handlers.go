package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/beesaferoot/propertyhub/internal/session"
	"github.com/beesaferoot/propertyhub/internal/syncengine"
)

// Reporter receives connectivity observations pushed by the UI
type Reporter interface {
	Report(ctx context.Context, online bool) bool
}

// OfflineHandler serves the offline session operations
type OfflineHandler struct {
	ctrl     *session.Controller
	reporter Reporter
	logger   *slog.Logger
}

func NewOfflineHandler(ctrl *session.Controller, reporter Reporter, logger *slog.Logger) *OfflineHandler {
	return &OfflineHandler{ctrl: ctrl, reporter: reporter, logger: logger}
}

type syncResponse struct {
	Success  bool                      `json:"success"`
	Upload   syncengine.UploadResult   `json:"upload"`
	Download syncengine.DownloadResult `json:"download"`
	Error    string                    `json:"error,omitempty"`
}

type disableResponse struct {
	Flush *syncengine.UploadResult `json:"flush"`
	State session.State            `json:"state"`
	Error string                   `json:"error,omitempty"`
}

type queueRequest struct {
	EntityType string          `json:"entity_type" binding:"required"`
	EntityID   uint            `json:"entity_id" binding:"required"`
	Action     string          `json:"action" binding:"required"`
	Data       json.RawMessage `json:"data"`
}

type connectivityRequest struct {
	Online *bool `json:"online" binding:"required"`
}

func (h *OfflineHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.State())
}

func (h *OfflineHandler) Enable(c *gin.Context) {
	if err := h.ctrl.Enable(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.State())
}

func (h *OfflineHandler) Disable(c *gin.Context) {
	keep, _ := strconv.ParseBool(c.Query("keep_on_failure"))
	flush, err := h.ctrl.Disable(c.Request.Context(), session.DisableOptions{KeepOnFlushFailure: keep})
	if errors.Is(err, session.ErrFlushIncomplete) {
		c.JSON(http.StatusConflict, disableResponse{Flush: flush, State: h.ctrl.State(), Error: err.Error()})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, disableResponse{Flush: flush, State: h.ctrl.State()})
}

func (h *OfflineHandler) Sync(c *gin.Context) {
	res, err := h.ctrl.ManualSync(c.Request.Context())
	switch {
	case errors.Is(err, session.ErrOffline),
		errors.Is(err, session.ErrSyncInProgress),
		errors.Is(err, session.ErrUnauthenticated):
		h.writeError(c, err)
		return
	}

	body := syncResponse{Success: res.Success, Upload: res.Upload, Download: res.Download}
	if err != nil {
		body.Error = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (h *OfflineHandler) Retry(c *gin.Context) {
	n, err := h.ctrl.RetryFailed(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requeued": n})
}

func (h *OfflineHandler) RecordPayment(c *gin.Context) {
	var in session.PaymentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	localID, err := h.ctrl.RecordOfflinePayment(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"local_id": localID})
}

func (h *OfflineHandler) QueueMutation(c *gin.Context) {
	var req queueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	id, err := h.ctrl.QueueMutation(c.Request.Context(), req.EntityType, req.EntityID, req.Action, req.Data)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *OfflineHandler) Cached(c *gin.Context) {
	tenantID, err := strconv.ParseUint(strings.TrimSpace(c.Query("tenant_id")), 10, 64)
	if err != nil || tenantID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}
	c.JSON(http.StatusOK, h.ctrl.ReadCached(c.Request.Context(), c.Param("kind"), uint(tenantID)))
}

func (h *OfflineHandler) Connectivity(c *gin.Context) {
	var req connectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	if h.reporter != nil {
		h.reporter.Report(c.Request.Context(), *req.Online)
	} else {
		h.ctrl.SetOnline(c.Request.Context(), *req.Online)
	}
	c.JSON(http.StatusOK, h.ctrl.State())
}

func (h *OfflineHandler) ClearError(c *gin.Context) {
	h.ctrl.ClearError()
	c.Status(http.StatusNoContent)
}

func (h *OfflineHandler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrPreconditionFailed):
		status = http.StatusPreconditionFailed
	case errors.Is(err, session.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, session.ErrOffline), errors.Is(err, syncengine.ErrRemoteUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, session.ErrSyncInProgress), errors.Is(err, session.ErrFlushIncomplete):
		status = http.StatusConflict
	case errors.Is(err, syncengine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
