package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/voxnote/voxnote/internal/filestore"
	"github.com/voxnote/voxnote/internal/pkg/naming"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// ReportRunner performs one immediate pipeline pass: transcribe everything
// pending, then promote regardless of the stability window.
type ReportRunner interface {
	RunReport(ctx context.Context) error
}

// IngestHandler implements the recorder-facing contract: a single POST
// endpoint dispatching on the action field of a JSON body.
type IngestHandler struct {
	voice   filestore.Store
	reports ReportRunner
	running atomic.Bool
}

type ingestRequest struct {
	Action   string `json:"action"`
	FileName string `json:"fileName"`
	FileData string `json:"fileData"`
}

type ingestResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	FileID  string `json:"fileId,omitempty"`
}

func NewIngestHandler(voice filestore.Store, reports ReportRunner) *IngestHandler {
	return &IngestHandler{voice: voice, reports: reports}
}

func (h *IngestHandler) Ingest(c *gin.Context) {
	req := &ingestRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ingestResponse{Status: "error", Message: "invalid request body"})
		return
	}
	switch req.Action {
	case "upload_chunk":
		h.uploadChunk(c, req)
	case "create_report":
		h.createReport(c)
	default:
		c.JSON(http.StatusBadRequest, ingestResponse{Status: "error", Message: "unknown action"})
	}
}

// uploadChunk stores one sealed chunk. The name is validated before any
// byte is decoded or written, so a malformed upload leaves no trace.
func (h *IngestHandler) uploadChunk(c *gin.Context, req *ingestRequest) {
	logger := logutil.GetLogger(c.Request.Context())
	if !naming.ValidChunkFileName(req.FileName) {
		logger.Warn("chunk rejected, bad file name", zap.String("file_name", req.FileName))
		c.JSON(http.StatusBadRequest, ingestResponse{Status: "error", Message: "invalid file name"})
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.FileData)
	if err != nil {
		c.JSON(http.StatusBadRequest, ingestResponse{Status: "error", Message: "invalid file data"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, ingestResponse{Status: "error", Message: "empty file data"})
		return
	}
	if err := h.voice.Save(c.Request.Context(), req.FileName, bytes.NewReader(data), int64(len(data))); err != nil {
		logger.Error("chunk store failed", zap.String("file_name", req.FileName), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ingestResponse{Status: "error", Message: "failed to store chunk"})
		return
	}
	logger.Info("chunk stored", zap.String("file_name", req.FileName), zap.Int("size", len(data)))
	c.JSON(http.StatusOK, ingestResponse{Status: "success", Message: "chunk stored", FileID: req.FileName})
}

// createReport acknowledges immediately and runs the pipeline pass in the
// background; concurrent triggers collapse into the one already running.
func (h *IngestHandler) createReport(c *gin.Context) {
	if !h.running.CompareAndSwap(false, true) {
		c.JSON(http.StatusOK, ingestResponse{Status: "success", Message: "report generation already running"})
		return
	}
	go func() {
		defer h.running.Store(false)
		ctx := context.Background()
		if err := h.reports.RunReport(ctx); err != nil {
			logutil.GetLogger(ctx).Error("report run failed", zap.Error(err))
		}
	}()
	c.JSON(http.StatusOK, ingestResponse{Status: "success", Message: "report generation started"})
}
