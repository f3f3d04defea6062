package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fyerfyer/docling-nodes/api/middleware"
	"github.com/fyerfyer/docling-nodes/internal/converter"
	"github.com/fyerfyer/docling-nodes/internal/models"
	"github.com/fyerfyer/docling-nodes/internal/repository"
	"github.com/fyerfyer/docling-nodes/internal/services"
	"github.com/fyerfyer/docling-nodes/pkg/storage"
	"github.com/fyerfyer/docling-nodes/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const guideMarkdown = "# Guide\n\nIntro text.\n\n## Install\n\nRun the binary.\n"

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Details string          `json:"details"`
	Data    json.RawMessage `json:"data"`
	TraceID string          `json:"trace_id"`
}

func init() {
	gin.SetMode(gin.TestMode)
	middleware.GetLogger().SetLevel(logrus.WarnLevel)
}

func setupRouter(t *testing.T, opts ...services.IngestOption) *gin.Engine {
	t.Helper()
	dbName := fmt.Sprintf("file:api_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Document{}, &models.Node{}))

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	opts = append([]services.IngestOption{services.WithLogger(logger)}, opts...)
	svc := services.NewIngestService(converter.NewLocalConverter(), repository.NewNodeRepositoryWithDB(db), opts...)
	return SetupRouter(svc, RouterConfig{})
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func writeGuide(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "guide.md")
	require.NoError(t, os.WriteFile(p, []byte(guideMarkdown), 0644))
	return p
}

func TestHealth(t *testing.T) {
	r := setupRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","async":false}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}

func TestConvert_Chunked(t *testing.T) {
	r := setupRouter(t)
	path := writeGuide(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/convert", gin.H{
		"sources":     []string{path},
		"export_type": "json",
		"chunk_docs":  true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0, resp.Code)

	var data struct {
		ExportType string `json:"export_type"`
		NodeCount  int    `json:"node_count"`
		Documents  []struct {
			Document struct {
				ID        string                 `json:"id"`
				Origin    string                 `json:"origin"`
				Metadata  map[string]interface{} `json:"metadata"`
				NodeCount int                    `json:"node_count"`
			} `json:"document"`
			Nodes []map[string]interface{} `json:"nodes"`
		} `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "json", data.ExportType)
	assert.Equal(t, 4, data.NodeCount)
	require.Len(t, data.Documents, 1)

	doc := data.Documents[0]
	assert.Equal(t, path, doc.Document.Origin)
	assert.Equal(t, 4, doc.Document.NodeCount)
	assert.Contains(t, doc.Document.Metadata, "dl_doc_hash")
	require.Len(t, doc.Nodes, 4)
	assert.Equal(t, doc.Document.ID+"_0", doc.Nodes[0]["id_"])
	assert.Contains(t, doc.Nodes[0], "metadata_seperator")

	// 节点接口返回同样的节点
	w, resp = doJSON(t, r, http.MethodGet, "/api/documents/"+doc.Document.ID+"/nodes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var nodes struct {
		DocumentID string                   `json:"document_id"`
		Total      int                      `json:"total"`
		Nodes      []map[string]interface{} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &nodes))
	assert.Equal(t, 4, nodes.Total)
	assert.Equal(t, "Run the binary.", nodes.Nodes[3]["text"])
}

func TestConvert_Validation(t *testing.T) {
	r := setupRouter(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/convert", gin.H{"sources": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.NotEmpty(t, resp.TraceID)

	w, resp = doJSON(t, r, http.MethodPost, "/api/convert", gin.H{
		"sources":     []string{"a.md"},
		"export_type": "html",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Details, "exporttype")
}

func TestConvert_ConversionError(t *testing.T) {
	r := setupRouter(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/convert", gin.H{
		"sources": []string{"/missing/file.md"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, resp.Details, "/missing/file.md")
}

func TestConvert_AsyncDisabled(t *testing.T) {
	r := setupRouter(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/convert", gin.H{
		"sources": []string{writeGuide(t)},
		"async":   true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConvert_AsyncAndTask(t *testing.T) {
	mr := miniredis.RunT(t)
	q, err := taskqueue.NewRedisQueue(&taskqueue.Config{RedisAddr: mr.Addr()})
	require.NoError(t, err)
	defer q.Close()

	r := setupRouter(t, services.WithTaskQueue(q))

	w, resp := doJSON(t, r, http.MethodPost, "/api/convert", gin.H{
		"sources": []string{writeGuide(t)},
		"async":   true,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var data struct {
		Async  bool   `json:"async"`
		TaskID string `json:"task_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.True(t, data.Async)
	require.NotEmpty(t, data.TaskID)

	w, resp = doJSON(t, r, http.MethodGet, "/api/tasks/"+data.TaskID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info taskqueue.TaskInfo
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.Equal(t, taskqueue.StatusPending, info.Status)
	assert.Equal(t, taskqueue.TaskDocumentIngest, info.Type)

	w, _ = doJSON(t, r, http.MethodGet, "/api/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpload(t *testing.T) {
	st, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	r := setupRouter(t, services.WithStorage(st))

	upload := func(filename, content string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.WriteField("chunk_docs", "true"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/convert/upload", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := upload("guide.md", guideMarkdown)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	var data struct {
		NodeCount int `json:"node_count"`
		Documents []struct {
			Document struct {
				Origin string `json:"origin"`
			} `json:"document"`
		} `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, 2, data.NodeCount)
	require.Len(t, data.Documents, 1)
	assert.Equal(t, "guide.md", data.Documents[0].Document.Origin)

	w = upload("image.png", "not a document")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocuments(t *testing.T) {
	r := setupRouter(t)
	path := writeGuide(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/convert", gin.H{"sources": []string{path}})
	require.Equal(t, http.StatusOK, w.Code)
	var converted struct {
		Documents []struct {
			Document struct {
				ID string `json:"id"`
			} `json:"document"`
		} `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &converted))
	id := converted.Documents[0].Document.ID

	w, resp = doJSON(t, r, http.MethodGet, "/api/documents?page=1&page_size=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Total     int64 `json:"total"`
		PageSize  int   `json:"page_size"`
		Documents []struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		} `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 5, list.PageSize)
	require.Len(t, list.Documents, 1)
	assert.Empty(t, list.Documents[0].Content)

	w, _ = doJSON(t, r, http.MethodGet, "/api/documents?export_type=xml", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = doJSON(t, r, http.MethodGet, "/api/documents/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doc struct {
		Content string `json:"content"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &doc))
	assert.Equal(t, "# Guide\n\nIntro text.\n\n## Install\n\nRun the binary.", doc.Content)
	assert.Equal(t, "completed", doc.Status)

	w, _ = doJSON(t, r, http.MethodDelete, "/api/documents/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = doJSON(t, r, http.MethodGet, "/api/documents/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "document not found", resp.Message)

	w, _ = doJSON(t, r, http.MethodGet, "/api/documents/"+id+"/nodes", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
