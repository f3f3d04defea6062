package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fyerfyer/docling-nodes/internal/converter"
	"github.com/fyerfyer/docling-nodes/internal/dldoc"
	"github.com/fyerfyer/docling-nodes/internal/models"
	"github.com/fyerfyer/docling-nodes/internal/reader"
	"github.com/fyerfyer/docling-nodes/internal/repository"
	"github.com/fyerfyer/docling-nodes/internal/schema"
	"github.com/fyerfyer/docling-nodes/pkg/storage"
	"github.com/fyerfyer/docling-nodes/pkg/taskqueue"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const guideMarkdown = "# Guide\n\nIntro text.\n\n## Install\n\nRun the binary.\n"

func setupRepo(t *testing.T) repository.NodeRepository {
	t.Helper()
	dbName := fmt.Sprintf("file:ingest_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Document{}, &models.Node{}))
	return repository.NewNodeRepositoryWithDB(db)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func newService(t *testing.T, opts ...IngestOption) *IngestService {
	t.Helper()
	opts = append([]IngestOption{WithLogger(testLogger())}, opts...)
	return NewIngestService(converter.NewLocalConverter(), setupRepo(t), opts...)
}

func TestIngest_Documents(t *testing.T) {
	svc := newService(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "guide.md", guideMarkdown)
	b := writeFile(t, dir, "notes.txt", "first paragraph\n\nsecond paragraph")
	ctx := context.Background()

	res, err := svc.Ingest(ctx, IngestRequest{Sources: []string{a, b}})
	require.NoError(t, err)
	assert.Equal(t, reader.ExportMarkdown, res.ExportType)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, 0, res.NodeCount)

	first := res.Documents[0].Document
	assert.Equal(t, a, first.Origin)
	assert.Equal(t, "# Guide\n\nIntro text.\n\n## Install\n\nRun the binary.", first.Content)
	assert.Empty(t, res.Documents[0].Nodes)

	stored, err := svc.GetDocument(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Content, stored.Content)
	assert.Equal(t, "markdown", stored.ExportType)
	assert.Equal(t, 0, stored.NodeCount)

	docs, total, err := svc.ListDocuments(ctx, 1, 10, repository.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, docs, 2)
}

func TestIngest_ChunkMarkdown(t *testing.T) {
	svc := newService(t)
	path := writeFile(t, t.TempDir(), "guide.md", guideMarkdown)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, IngestRequest{Sources: []string{path}, ChunkDocs: true})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, 2, res.NodeCount)

	docID := res.Documents[0].Document.ID
	stored, err := svc.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.NodeCount)
	assert.NotEmpty(t, stored.Content)

	nodes, err := svc.GetNodes(ctx, docID)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, docID+"_0", nodes[0].ID)
	assert.Equal(t, docID+"_1", nodes[1].ID)
	assert.Equal(t, "## Install\n\nRun the binary.", nodes[1].Text)
	assert.Equal(t, "/Guide/", nodes[1].Metadata["header_path"])
	assert.Equal(t, path, nodes[1].Metadata["origin"])

	src, ok := nodes[1].SourceNode()
	require.True(t, ok)
	assert.Equal(t, docID, src.NodeID)
	prev, ok := nodes[1].PrevNode()
	require.True(t, ok)
	assert.Equal(t, nodes[0].ID, prev.NodeID)
}

func TestIngest_ChunkJSON(t *testing.T) {
	svc := newService(t)
	path := writeFile(t, t.TempDir(), "guide.md", guideMarkdown)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, IngestRequest{Sources: []string{path}, ExportType: "json", ChunkDocs: true})
	require.NoError(t, err)
	assert.Equal(t, reader.ExportJSON, res.ExportType)
	assert.Equal(t, 4, res.NodeCount)

	// JSON导出的内容可还原为结构化文档
	_, err = dldoc.Parse([]byte(res.Documents[0].Document.Content))
	require.NoError(t, err)

	nodes, err := svc.GetNodes(ctx, res.Documents[0].Document.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 4)
	assert.Equal(t, "Run the binary.", nodes[3].Text)
	assert.Equal(t, "Install", nodes[3].Metadata["heading"])
	assert.Equal(t, "heading: Install\n\nRun the binary.", nodes[3].GetContent(schema.MetadataModeEmbed))
}

func TestIngest_SameSourceTwice(t *testing.T) {
	svc := newService(t)
	path := writeFile(t, t.TempDir(), "guide.md", guideMarkdown)

	res, err := svc.Ingest(context.Background(), IngestRequest{Sources: []string{path, path}, ChunkDocs: true})
	require.NoError(t, err)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, res.Documents[0].Document.ID, res.Documents[1].Document.ID)

	nodes, err := svc.GetNodes(context.Background(), res.Documents[0].Document.ID)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestIngest_Errors(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestRequest{})
	assert.ErrorIs(t, err, ErrNoSources)

	_, err = svc.Ingest(ctx, IngestRequest{Sources: []string{"a.md"}, ExportType: "html"})
	var cfgErr *reader.ConfigError
	assert.True(t, errors.As(err, &cfgErr))

	// 任一源失败时不保存任何文档
	good := writeFile(t, t.TempDir(), "guide.md", guideMarkdown)
	_, err = svc.Ingest(ctx, IngestRequest{Sources: []string{good, "/missing/file.md"}})
	var convErr *reader.ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, "/missing/file.md", convErr.Source)

	_, total, err := svc.ListDocuments(ctx, 1, 10, repository.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	_, err = svc.GetNodes(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

// brokenBatchRepo 在批次末尾追加一个无效文档，使整个批次失败
type brokenBatchRepo struct {
	repository.NodeRepository
}

func (r brokenBatchRepo) SaveBatch(ctx context.Context, items []repository.DocumentBatchItem) error {
	return r.NodeRepository.SaveBatch(ctx, append(items, repository.DocumentBatchItem{Document: &models.Document{}}))
}

func TestIngest_PersistIsAtomic(t *testing.T) {
	repo := setupRepo(t)
	svc := NewIngestService(converter.NewLocalConverter(), brokenBatchRepo{repo}, WithLogger(testLogger()))
	dir := t.TempDir()
	a := writeFile(t, dir, "a.md", guideMarkdown)
	b := writeFile(t, dir, "b.md", "# Other\n\ntext\n")

	_, err := svc.Ingest(context.Background(), IngestRequest{Sources: []string{a, b}, ChunkDocs: true})
	assert.ErrorIs(t, err, models.ErrEmptyDocumentID)

	_, total, err := repo.ListDocuments(context.Background(), 0, 10, repository.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestIngestUpload(t *testing.T) {
	st, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	tmp := t.TempDir()
	svc := newService(t, WithStorage(st), WithTempDir(tmp))
	ctx := context.Background()

	res, err := svc.IngestUpload(ctx, bytes.NewBufferString(guideMarkdown), "guide.md", "markdown", true)
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "guide.md", res.Documents[0].Document.Origin)

	nodes, err := svc.GetNodes(ctx, res.Documents[0].Document.ID)
	require.NoError(t, err)
	require.NotEmpty(t, nodes)
	assert.Equal(t, "guide.md", nodes[0].Metadata["origin"])

	// 临时文件已清理
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)

	files, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestIngestUpload_NoStorage(t *testing.T) {
	svc := newService(t)
	_, err := svc.IngestUpload(context.Background(), bytes.NewBufferString("x"), "a.md", "", false)
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

func TestIngestAsync(t *testing.T) {
	mr := miniredis.RunT(t)
	q, err := taskqueue.NewRedisQueue(&taskqueue.Config{RedisAddr: mr.Addr(), RetryLimit: 1},
		taskqueue.WithLogger(testLogger()))
	require.NoError(t, err)
	defer q.Close()

	svc := newService(t, WithTaskQueue(q))
	assert.True(t, svc.AsyncEnabled())
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "guide.md", guideMarkdown)

	taskID, err := svc.IngestAsync(ctx, IngestRequest{Sources: []string{path}, ExportType: "md", ChunkDocs: true})
	require.NoError(t, err)

	info, err := svc.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, taskqueue.StatusPending, info.Status)
	assert.Equal(t, path, info.Origin)

	task, err := q.GetTask(ctx, taskID)
	require.NoError(t, err)
	var payload taskqueue.IngestPayload
	require.NoError(t, taskqueue.UnmarshalPayload(task.Payload, &payload))
	assert.Equal(t, "markdown", payload.ExportType)

	// 直接调用处理器模拟工作者执行
	out, err := svc.ProcessTask(ctx, task)
	require.NoError(t, err)
	result, ok := out.(*taskqueue.IngestResult)
	require.True(t, ok)
	require.Len(t, result.DocumentIDs, 1)
	assert.Equal(t, 2, result.NodeCount)

	doc, err := svc.GetDocument(ctx, result.DocumentIDs[0])
	require.NoError(t, err)
	assert.Equal(t, taskID, doc.TaskID)

	_, err = svc.IngestAsync(ctx, IngestRequest{Sources: []string{path}, ExportType: "xml"})
	assert.Error(t, err)
}

func TestIngestAsync_Disabled(t *testing.T) {
	svc := newService(t)
	_, err := svc.IngestAsync(context.Background(), IngestRequest{Sources: []string{"a.md"}})
	assert.ErrorIs(t, err, ErrAsyncDisabled)
	_, err = svc.GetTask(context.Background(), "x")
	assert.ErrorIs(t, err, ErrAsyncDisabled)
}

func TestProcessTask_InvalidPayload(t *testing.T) {
	svc := newService(t)
	_, err := svc.ProcessTask(context.Background(), &taskqueue.Task{ID: "t", Payload: []byte("{")})
	assert.ErrorIs(t, err, taskqueue.ErrInvalidPayload)
}
