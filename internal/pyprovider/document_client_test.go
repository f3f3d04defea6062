package pyprovider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const convertedJSON = `{"name":"foo","file-info":{"filename":"foo.pdf","document-hash":"123"},"main-text":[]}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *DocumentClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig().WithBaseURL(srv.URL).WithRetry(2, 10*time.Millisecond).WithAPIKey("secret")
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)
	return NewDocumentClient(client)
}

func writeConvertResponse(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"document": map[string]any{
			"filename":     "foo.pdf",
			"md_content":   "# foo",
			"json_content": json.RawMessage(convertedJSON),
		},
		"status":          status,
		"errors":          []any{},
		"processing_time": 0.5,
	})
}

func TestDocumentClient_ConvertSource(t *testing.T) {
	docClient := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/convert/source", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		var req ConvertSourceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Sources, 1)
		assert.Equal(t, "https://example.com/foo.pdf", req.Sources[0].URL)
		assert.Equal(t, []string{"json", "md"}, req.Options.ToFormats)

		writeConvertResponse(w, StatusSuccess)
	})

	result, err := docClient.ConvertSource(context.Background(), "https://example.com/foo.pdf")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "# foo", result.MDContent)
	assert.JSONEq(t, convertedJSON, string(result.JSONContent))
}

func TestDocumentClient_ConvertFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# notes"), 0644))

	docClient := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/convert/file", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, []string{"json", "md"}, r.MultipartForm.Value["to_formats"])

		file, header, err := r.FormFile("files")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "notes.md", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "# notes", string(data))

		writeConvertResponse(w, StatusPartialSuccess)
	})

	result, err := docClient.ConvertFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, StatusPartialSuccess, result.Status)
}

func TestDocumentClient_ConversionFailure(t *testing.T) {
	docClient := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"document": map[string]any{},
			"status":   StatusFailure,
			"errors":   []map[string]string{{"error_message": "unsupported format"}},
		})
	})

	_, err := docClient.ConvertSource(context.Background(), "https://example.com/x.bin")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "unsupported format", apiErr.Detail)
}

func TestClient_RetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	docClient := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeConvertResponse(w, StatusSuccess)
	})

	_, err := docClient.ConvertSource(context.Background(), "https://example.com/foo.pdf")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	docClient := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"bad source"}`))
	})

	_, err := docClient.ConvertSource(context.Background(), "ftp://nowhere")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "bad source", apiErr.Detail)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewClient_EmptyBaseURL(t *testing.T) {
	_, err := NewClient(&PyServiceConfig{}, nil)
	assert.Error(t, err)
}
