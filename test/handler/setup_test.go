package handler_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/filestore"
	"github.com/voxnote/voxnote/internal/handler"
	"github.com/voxnote/voxnote/internal/middleware"
)

type recordingRunner struct {
	mu    sync.Mutex
	runs  int
	fired chan struct{}
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{fired: make(chan struct{}, 16)}
}

func (r *recordingRunner) RunReport(ctx context.Context) error {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()
	r.fired <- struct{}{}
	return nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func setupRouter(t *testing.T) (http.Handler, filestore.Store, *recordingRunner, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	voiceDir := t.TempDir()
	voice, err := filestore.New(config.StoreConfig{
		Type: "local",
		Data: map[string]interface{}{
			"dir": voiceDir,
		},
	})
	require.NoError(t, err)

	runner := newRecordingRunner()
	deps := handler.RouterDeps{
		Ingest: handler.NewIngestHandler(voice, runner),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(),
		),
	)
	require.NoError(t, err)
	return engine, voice, runner, voiceDir
}
