package handler_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func postIngest(t *testing.T, router http.Handler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestIngestUploadChunk(t *testing.T) {
	router, _, _, voiceDir := setupRouter(t)

	audio := []byte("opus-frames")
	resp := postIngest(t, router, map[string]string{
		"action":   "upload_chunk",
		"fileName": "260202_150000_chunk01.webm",
		"fileData": base64.StdEncoding.EncodeToString(audio),
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var result struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		FileID  string `json:"fileId"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Equal(t, "success", result.Status)
	require.Equal(t, "260202_150000_chunk01.webm", result.FileID)

	saved, err := os.ReadFile(filepath.Join(voiceDir, "260202_150000_chunk01.webm"))
	require.NoError(t, err)
	require.Equal(t, audio, saved)
}

func TestIngestRejectsBadFileName(t *testing.T) {
	router, _, _, voiceDir := setupRouter(t)

	for _, name := range []string{"recording.webm", "260202_15_chunk01.webm", "../etc/passwd", ""} {
		resp := postIngest(t, router, map[string]string{
			"action":   "upload_chunk",
			"fileName": name,
			"fileData": base64.StdEncoding.EncodeToString([]byte("data")),
		})
		require.Equal(t, http.StatusBadRequest, resp.Code, "name %q", name)
	}

	// Nothing was written for any rejected name.
	entries, err := os.ReadDir(voiceDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestIngestRejectsBadBase64(t *testing.T) {
	router, _, _, _ := setupRouter(t)
	resp := postIngest(t, router, map[string]string{
		"action":   "upload_chunk",
		"fileName": "260202_150000_chunk00.webm",
		"fileData": "not base64!!!",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestIngestUnknownAction(t *testing.T) {
	router, _, _, _ := setupRouter(t)
	resp := postIngest(t, router, map[string]string{"action": "delete_everything"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestIngestCreateReport(t *testing.T) {
	router, _, runner, _ := setupRouter(t)

	resp := postIngest(t, router, map[string]string{"action": "create_report"})
	require.Equal(t, http.StatusOK, resp.Code)

	var result struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Equal(t, "success", result.Status)

	// The run happens after the acknowledgement.
	select {
	case <-runner.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("report run was not triggered")
	}
	require.Equal(t, 1, runner.count())
}

func TestIngestPreflight(t *testing.T) {
	router, _, _, _ := setupRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ingest", nil)
	req.Header.Set("Origin", "https://recorder.example.com")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNoContent, resp.Code)
	require.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}
