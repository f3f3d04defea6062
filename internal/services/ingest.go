package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fyerfyer/docling-nodes/internal/converter"
	"github.com/fyerfyer/docling-nodes/internal/models"
	"github.com/fyerfyer/docling-nodes/internal/nodeparser"
	"github.com/fyerfyer/docling-nodes/internal/reader"
	"github.com/fyerfyer/docling-nodes/internal/repository"
	"github.com/fyerfyer/docling-nodes/internal/schema"
	"github.com/fyerfyer/docling-nodes/pkg/storage"
	"github.com/fyerfyer/docling-nodes/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoSources 请求中没有任何源
	ErrNoSources = errors.New("no sources to ingest")
	// ErrAsyncDisabled 未配置任务队列
	ErrAsyncDisabled = errors.New("async processing is not enabled")
	// ErrStorageDisabled 未配置上传存储
	ErrStorageDisabled = errors.New("upload storage is not configured")
)

// IngestRequest 入库请求
type IngestRequest struct {
	Sources    []string              // 本地路径或URL
	Uploads    []taskqueue.UploadRef // 已保存的上传文件
	ExportType string                // 为空时使用markdown
	ChunkDocs  bool                  // 是否分块保存节点
}

// IngestedDocument 一个已入库的文档及其节点
type IngestedDocument struct {
	Document *models.Document
	Nodes    []*models.Node
}

// IngestResult 入库结果，文档按输入顺序排列
type IngestResult struct {
	ExportType reader.ExportType
	Documents  []IngestedDocument
	NodeCount  int
}

// DocumentIDs 返回全部文档ID
func (r *IngestResult) DocumentIDs() []string {
	ids := make([]string, 0, len(r.Documents))
	for _, d := range r.Documents {
		ids = append(ids, d.Document.ID)
	}
	return ids
}

// IngestService 文档入库服务
// 负责协调转换、分块、持久化和异步任务
type IngestService struct {
	conv     converter.Converter
	repo     repository.NodeRepository
	storage  storage.Storage
	queue    taskqueue.Queue
	progress nodeparser.ProgressReporter
	tempDir  string
	timeout  time.Duration
	logger   *logrus.Logger
}

// IngestOption 服务配置选项
type IngestOption func(*IngestService)

// NewIngestService 创建入库服务
func NewIngestService(conv converter.Converter, repo repository.NodeRepository, opts ...IngestOption) *IngestService {
	s := &IngestService{
		conv:     conv,
		repo:     repo,
		progress: nodeparser.NopProgress{},
		timeout:  5 * time.Minute,
		logger:   logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithStorage 设置上传文件存储
func WithStorage(st storage.Storage) IngestOption {
	return func(s *IngestService) {
		s.storage = st
	}
}

// WithTaskQueue 设置任务队列，启用异步入库
func WithTaskQueue(q taskqueue.Queue) IngestOption {
	return func(s *IngestService) {
		s.queue = q
	}
}

// WithProgress 设置分块进度报告
func WithProgress(p nodeparser.ProgressReporter) IngestOption {
	return func(s *IngestService) {
		if p != nil {
			s.progress = p
		}
	}
}

// WithTempDir 设置上传文件的临时目录，默认系统临时目录
func WithTempDir(dir string) IngestOption {
	return func(s *IngestService) {
		s.tempDir = dir
	}
}

// WithTimeout 设置单次入库超时时间，0表示不限制
func WithTimeout(timeout time.Duration) IngestOption {
	return func(s *IngestService) {
		s.timeout = timeout
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) IngestOption {
	return func(s *IngestService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// AsyncEnabled 是否配置了任务队列
func (s *IngestService) AsyncEnabled() bool {
	return s.queue != nil
}

// Ingest 同步转换并保存文档
// 所有源转换成功后才写入数据库，任一源失败时不保存任何结果
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	return s.ingest(ctx, req, "")
}

func (s *IngestService) ingest(ctx context.Context, req IngestRequest, taskID string) (*IngestResult, error) {
	if len(req.Sources) == 0 && len(req.Uploads) == 0 {
		return nil, ErrNoSources
	}
	exportType, err := parseExportType(req.ExportType)
	if err != nil {
		return nil, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log := s.logger.WithFields(logrus.Fields{
		"sources":     len(req.Sources),
		"uploads":     len(req.Uploads),
		"export_type": exportType,
		"chunk":       req.ChunkDocs,
		"task_id":     taskID,
	})
	log.Info("Starting ingestion")

	sources := append([]string(nil), req.Sources...)
	origins := make(map[string]string)
	for _, up := range req.Uploads {
		path, err := s.materialize(ctx, up)
		if err != nil {
			return nil, err
		}
		defer os.Remove(path)
		sources = append(sources, path)
		origins[path] = up.Name
	}

	r, err := reader.NewReader(s.conv,
		reader.WithExportType(exportType),
		reader.WithOriginFunc(func(source string) string {
			if name, ok := origins[source]; ok {
				return name
			}
			return source
		}),
		reader.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}

	var parser nodeparser.NodeParser
	if req.ChunkDocs {
		parser, err = reader.DefaultNodeParser(exportType,
			nodeparser.WithLogger(s.logger),
			nodeparser.WithProgress(s.progress),
		)
		if err != nil {
			return nil, err
		}
	}

	result := &IngestResult{ExportType: exportType}
	i := 0
	for node, err := range r.LazyLoadData(ctx, sources...).All() {
		if err != nil {
			log.WithError(err).Error("Ingestion failed")
			return nil, err
		}
		doc, ok := node.(*schema.Document)
		if !ok {
			return nil, fmt.Errorf("unexpected node type %T", node)
		}

		origin := sources[i]
		if name, ok := origins[origin]; ok {
			origin = name
		}
		i++

		ingested, err := s.buildRecords(ctx, doc, origin, exportType, parser)
		if err != nil {
			return nil, err
		}
		ingested.Document.TaskID = taskID
		result.Documents = append(result.Documents, ingested)
		result.NodeCount += len(ingested.Nodes)
	}

	if err := s.persist(ctx, result, req.ChunkDocs); err != nil {
		log.WithError(err).Error("Failed to persist ingestion result")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"documents": len(result.Documents),
		"nodes":     result.NodeCount,
	}).Info("Ingestion completed")
	return result, nil
}

// buildRecords 生成文档记录，开启分块时同时生成节点记录
func (s *IngestService) buildRecords(ctx context.Context, doc *schema.Document, origin string, exportType reader.ExportType, parser nodeparser.NodeParser) (IngestedDocument, error) {
	rec, err := models.NewDocumentRecord(doc, origin, string(exportType))
	if err != nil {
		return IngestedDocument{}, err
	}
	out := IngestedDocument{Document: rec}
	if parser == nil {
		return out, nil
	}

	nodes, err := parser.GetNodesFromDocuments(ctx, []schema.BaseNode{doc}).Collect()
	if err != nil {
		return IngestedDocument{}, err
	}
	for pos, n := range nodes {
		nr, err := models.NewNodeRecord(n, doc.ID, pos)
		if err != nil {
			return IngestedDocument{}, err
		}
		out.Nodes = append(out.Nodes, nr)
	}
	out.Document.NodeCount = len(out.Nodes)
	return out, nil
}

// persist 在一个事务中保存文档和节点，同一ID的文档以最后一次为准
func (s *IngestService) persist(ctx context.Context, result *IngestResult, chunk bool) error {
	items := make([]repository.DocumentBatchItem, 0, len(result.Documents))
	for _, d := range result.Documents {
		item := repository.DocumentBatchItem{Document: d.Document}
		if chunk {
			item.Nodes = d.Nodes
			if item.Nodes == nil {
				item.Nodes = []*models.Node{}
			}
		}
		items = append(items, item)
	}
	return s.repo.SaveBatch(ctx, items)
}

// SaveUpload 保存上传文件
func (s *IngestService) SaveUpload(ctx context.Context, r io.Reader, filename string) (taskqueue.UploadRef, error) {
	if s.storage == nil {
		return taskqueue.UploadRef{}, ErrStorageDisabled
	}
	info, err := s.storage.Save(ctx, r, filename)
	if err != nil {
		return taskqueue.UploadRef{}, fmt.Errorf("failed to save upload: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"file_id":  info.ID,
		"filename": filename,
		"size":     info.Size,
	}).Info("Upload saved")
	return taskqueue.UploadRef{FileID: info.ID, Name: filename}, nil
}

// IngestUpload 保存上传文件并同步入库，origin为原始文件名
func (s *IngestService) IngestUpload(ctx context.Context, r io.Reader, filename, exportType string, chunk bool) (*IngestResult, error) {
	ref, err := s.SaveUpload(ctx, r, filename)
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, IngestRequest{
		Uploads:    []taskqueue.UploadRef{ref},
		ExportType: exportType,
		ChunkDocs:  chunk,
	})
}

func (s *IngestService) materialize(ctx context.Context, up taskqueue.UploadRef) (string, error) {
	if s.storage == nil {
		return "", ErrStorageDisabled
	}
	path, err := storage.Materialize(ctx, s.storage, up.FileID, s.tempDir)
	if err != nil {
		return "", fmt.Errorf("failed to load upload %s: %w", up.FileID, err)
	}
	return path, nil
}

// IngestAsync 提交异步入库任务，返回任务ID
func (s *IngestService) IngestAsync(ctx context.Context, req IngestRequest) (string, error) {
	if s.queue == nil {
		return "", ErrAsyncDisabled
	}
	if len(req.Sources) == 0 && len(req.Uploads) == 0 {
		return "", ErrNoSources
	}
	exportType, err := parseExportType(req.ExportType)
	if err != nil {
		return "", err
	}

	origin := ""
	if len(req.Sources) > 0 {
		origin = req.Sources[0]
	} else {
		origin = req.Uploads[0].Name
	}

	payload := &taskqueue.IngestPayload{
		Sources:    req.Sources,
		Uploads:    req.Uploads,
		ExportType: string(exportType),
		ChunkDocs:  req.ChunkDocs,
	}
	taskID, err := s.queue.Enqueue(ctx, taskqueue.TaskDocumentIngest, origin, payload)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue ingest task: %w", err)
	}
	return taskID, nil
}

// ProcessTask 处理异步入库任务，实现taskqueue.Handler
func (s *IngestService) ProcessTask(ctx context.Context, task *taskqueue.Task) (interface{}, error) {
	var payload taskqueue.IngestPayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", taskqueue.ErrInvalidPayload, err)
	}

	result, err := s.ingest(ctx, IngestRequest{
		Sources:    payload.Sources,
		Uploads:    payload.Uploads,
		ExportType: payload.ExportType,
		ChunkDocs:  payload.ChunkDocs,
	}, task.ID)
	if err != nil {
		return nil, err
	}

	return &taskqueue.IngestResult{
		DocumentIDs: result.DocumentIDs(),
		NodeCount:   result.NodeCount,
	}, nil
}

// GetTask 查询异步任务
func (s *IngestService) GetTask(ctx context.Context, taskID string) (*taskqueue.TaskInfo, error) {
	if s.queue == nil {
		return nil, ErrAsyncDisabled
	}
	task, err := s.queue.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return taskqueue.NewTaskInfo(task), nil
}

// GetDocument 获取文档
func (s *IngestService) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return s.repo.GetDocument(ctx, id)
}

// ListDocuments 分页列出文档
func (s *IngestService) ListDocuments(ctx context.Context, page, pageSize int, filter repository.ListFilter) ([]*models.Document, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	return s.repo.ListDocuments(ctx, (page-1)*pageSize, pageSize, filter)
}

// GetNodes 按顺序获取文档的节点
func (s *IngestService) GetNodes(ctx context.Context, docID string) ([]*schema.TextNode, error) {
	if _, err := s.repo.GetDocument(ctx, docID); err != nil {
		return nil, err
	}
	recs, err := s.repo.GetNodes(ctx, docID)
	if err != nil {
		return nil, err
	}
	nodes := make([]*schema.TextNode, 0, len(recs))
	for _, rec := range recs {
		n, err := rec.ToTextNode()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// DeleteDocument 删除文档及其节点
func (s *IngestService) DeleteDocument(ctx context.Context, id string) error {
	return s.repo.DeleteDocument(ctx, id)
}

func parseExportType(s string) (reader.ExportType, error) {
	if s == "" {
		return reader.ExportMarkdown, nil
	}
	return reader.ParseExportType(s)
}
