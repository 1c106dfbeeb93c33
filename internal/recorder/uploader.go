package recorder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/filestore"
	"github.com/voxnote/voxnote/internal/model"
	appErr "github.com/voxnote/voxnote/internal/pkg/errors"
	"github.com/voxnote/voxnote/internal/pkg/naming"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// UploadStatus distinguishes a confirmed delivery from a best-effort one
// and from a transport failure that triggered the local fallback.
type UploadStatus int

const (
	StatusDelivered UploadStatus = iota
	StatusUnconfirmed
	StatusTransportFailed
)

func (s UploadStatus) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusUnconfirmed:
		return "unconfirmed"
	case StatusTransportFailed:
		return "transport_failed"
	default:
		return "unknown"
	}
}

type UploadResult struct {
	Status   UploadStatus
	FileID   string
	Fallback string
	Err      error
}

// Uploader delivers a sealed chunk. Implementations never block the
// recording loop; the orchestrator dispatches them asynchronously.
type Uploader interface {
	Upload(ctx context.Context, chunk *model.Chunk) UploadResult
}

type uploadRequest struct {
	Action   string `json:"action"`
	FileName string `json:"fileName"`
	FileData string `json:"fileData"`
}

type uploadResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	FileID  string `json:"fileId"`
}

// Pipeline posts sealed chunks to the ingest endpoint as base64 JSON.
// On transport failure the chunk is written to a local fallback directory
// for manual resubmission, so no audio is ever silently lost.
type Pipeline struct {
	endpoint string
	client   *http.Client
	fallback filestore.Store
}

func NewPipeline(endpoint string, fallbackDir string) (*Pipeline, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: upload endpoint is required", appErr.ErrInvalid)
	}
	fallback, err := filestore.New(config.StoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": fallbackDir},
	})
	if err != nil {
		return nil, fmt.Errorf("create fallback store: %w", err)
	}
	return &Pipeline{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 2 * time.Minute},
		fallback: fallback,
	}, nil
}

func (p *Pipeline) Upload(ctx context.Context, chunk *model.Chunk) UploadResult {
	logger := logutil.GetLogger(ctx).With(
		zap.String("session_id", chunk.SessionID),
		zap.Int("chunk_index", chunk.Index),
	)
	name := naming.ChunkFileName(chunk.SessionID, chunk.Index)
	resp, err := p.post(ctx, name, chunk.Bytes)
	if err != nil {
		fallback, ferr := p.saveFallback(ctx, name, chunk.Bytes)
		if ferr != nil {
			logger.Error("upload failed and fallback save failed, chunk lost",
				zap.Error(err), zap.NamedError("fallback_err", ferr))
			return UploadResult{Status: StatusTransportFailed, Err: err}
		}
		logger.Error("upload failed, chunk saved locally, resubmit with the upload command",
			zap.String("fallback", fallback), zap.Error(err))
		return UploadResult{Status: StatusTransportFailed, Fallback: fallback, Err: err}
	}
	if resp == nil {
		logger.Warn("upload accepted but delivery not confirmed")
		return UploadResult{Status: StatusUnconfirmed}
	}
	logger.Info("chunk delivered", zap.String("file_id", resp.FileID))
	return UploadResult{Status: StatusDelivered, FileID: resp.FileID}
}

// post returns a nil response with a nil error when the server accepted
// the request but the body could not be interpreted as a receipt.
func (p *Pipeline) post(ctx context.Context, name string, data []byte) (*uploadResponse, error) {
	payload, err := json.Marshal(uploadRequest{
		Action:   "upload_chunk",
		FileName: name,
		FileData: base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return nil, fmt.Errorf("encode upload request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	httpResp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post chunk: %w", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, fmt.Errorf("upload rejected: http %d", httpResp.StatusCode)
	}
	resp := &uploadResponse{}
	if err := json.NewDecoder(httpResp.Body).Decode(resp); err != nil || resp.Status == "" {
		return nil, nil
	}
	return resp, nil
}

func (p *Pipeline) saveFallback(ctx context.Context, name string, data []byte) (string, error) {
	if err := p.fallback.Save(ctx, name, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", err
	}
	return name, nil
}

// UploadFile resubmits a chunk saved by the fallback path. The name is
// validated before anything is read or sent.
func (p *Pipeline) UploadFile(ctx context.Context, path string) error {
	name := filepath.Base(path)
	if !naming.ValidChunkFileName(name) {
		return fmt.Errorf("%w: %q is not a chunk file name", appErr.ErrInvalid, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read chunk file: %w", err)
	}
	resp, err := p.post(ctx, name, data)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("file_name", name))
	if resp == nil {
		logger.Warn("resubmit accepted but delivery not confirmed")
	} else {
		logger.Info("chunk resubmitted", zap.String("file_id", resp.FileID))
	}
	return nil
}
