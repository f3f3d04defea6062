package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupQueue 使用miniredis创建队列
func setupQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	q, err := NewRedisQueue(&Config{
		RedisAddr:   mr.Addr(),
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}, WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q, mr
}

func testPayload() *IngestPayload {
	return &IngestPayload{
		Sources:    []string{"/data/report.pdf"},
		ExportType: "json",
		ChunkDocs:  true,
	}
}

func TestNewRedisQueue_ConnectError(t *testing.T) {
	_, err := NewRedisQueue(&Config{RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRedisQueue_Enqueue(t *testing.T) {
	q, mr := setupQueue(t)
	ctx := context.Background()

	taskID, err := q.Enqueue(ctx, TaskDocumentIngest, "/data/report.pdf", testPayload())
	require.NoError(t, err)
	assert.NotEmpty(t, taskID)

	task, err := q.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, TaskDocumentIngest, task.Type)
	assert.Equal(t, "/data/report.pdf", task.Origin)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, 2, task.MaxRetries)

	var payload IngestPayload
	require.NoError(t, UnmarshalPayload(task.Payload, &payload))
	assert.Equal(t, *testPayload(), payload)

	// 任务数据带有过期时间
	assert.True(t, mr.TTL(taskKeyPrefix+taskID) > 0)
}

func TestRedisQueue_EnqueueIn(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	taskID, err := q.EnqueueIn(ctx, TaskDocumentIngest, "a.md", testPayload(), time.Minute)
	require.NoError(t, err)

	task, err := q.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, task.Status)
}

func TestRedisQueue_GetTaskNotFound(t *testing.T) {
	q, _ := setupQueue(t)
	_, err := q.GetTask(context.Background(), "missing")
	assert.Equal(t, ErrTaskNotFound, err)
}

func TestRedisQueue_GetTasksByOrigin(t *testing.T) {
	q, mr := setupQueue(t)
	ctx := context.Background()

	id1, err := q.Enqueue(ctx, TaskDocumentIngest, "a.md", testPayload())
	require.NoError(t, err)
	id2, err := q.Enqueue(ctx, TaskDocumentIngest, "a.md", testPayload())
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, TaskDocumentIngest, "b.md", testPayload())
	require.NoError(t, err)

	tasks, err := q.GetTasksByOrigin(ctx, "a.md")
	require.NoError(t, err)
	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	assert.ElementsMatch(t, []string{id1, id2}, ids)

	// 过期的任务被跳过
	mr.Del(taskKeyPrefix + id1)
	tasks, err = q.GetTasksByOrigin(ctx, "a.md")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, id2, tasks[0].ID)

	tasks, err = q.GetTasksByOrigin(ctx, "none")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestRedisQueue_UpdateTaskStatus(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	taskID, err := q.Enqueue(ctx, TaskDocumentIngest, "a.md", testPayload())
	require.NoError(t, err)

	require.NoError(t, q.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, ""))
	task, err := q.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, task.Status)
	assert.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)

	result := &IngestResult{DocumentIDs: []string{"123"}, NodeCount: 2}
	require.NoError(t, q.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, ""))
	task, err = q.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt)
	assert.JSONEq(t, `{"document_ids":["123"],"node_count":2}`, string(task.Result))

	err = q.UpdateTaskStatus(ctx, "missing", StatusFailed, nil, "boom")
	assert.Equal(t, ErrTaskNotFound, err)
}

func TestRedisQueue_DeleteTask(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	taskID, err := q.Enqueue(ctx, TaskDocumentIngest, "a.md", testPayload())
	require.NoError(t, err)

	require.NoError(t, q.DeleteTask(ctx, taskID))

	_, err = q.GetTask(ctx, taskID)
	assert.Equal(t, ErrTaskNotFound, err)
	tasks, err := q.GetTasksByOrigin(ctx, "a.md")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	assert.Equal(t, ErrTaskNotFound, q.DeleteTask(ctx, taskID))
}

func TestRedisQueue_WaitForTask(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	taskID, err := q.Enqueue(ctx, TaskDocumentIngest, "a.md", testPayload())
	require.NoError(t, err)

	_, err = q.WaitForTask(ctx, taskID, 50*time.Millisecond)
	assert.Equal(t, ErrTaskTimeout, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = q.UpdateTaskStatus(ctx, taskID, StatusCompleted, nil, "")
		_ = q.NotifyTaskUpdate(ctx, taskID)
	}()

	task, err := q.WaitForTask(ctx, taskID, 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
}

func TestRedisWorker_Execute(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()
	w := &RedisWorker{queue: q, handlers: map[TaskType]Handler{}, logger: q.logger}

	t.Run("success", func(t *testing.T) {
		taskID, err := q.Enqueue(ctx, TaskDocumentIngest, "a.md", testPayload())
		require.NoError(t, err)

		var seen IngestPayload
		h := HandlerFunc(func(ctx context.Context, task *Task) (interface{}, error) {
			if err := UnmarshalPayload(task.Payload, &seen); err != nil {
				return nil, err
			}
			return &IngestResult{DocumentIDs: []string{"123"}, NodeCount: 3}, nil
		})

		require.NoError(t, w.execute(ctx, taskID, h, 1, true))
		assert.Equal(t, []string{"/data/report.pdf"}, seen.Sources)

		task, err := q.GetTask(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, task.Status)
		assert.Equal(t, 1, task.Attempts)
		assert.NotNil(t, task.StartedAt)

		var result IngestResult
		require.NoError(t, json.Unmarshal(task.Result, &result))
		assert.Equal(t, 3, result.NodeCount)
	})

	t.Run("retry then fail", func(t *testing.T) {
		taskID, err := q.Enqueue(ctx, TaskDocumentIngest, "b.md", testPayload())
		require.NoError(t, err)

		boom := errors.New("conversion failed")
		h := HandlerFunc(func(ctx context.Context, task *Task) (interface{}, error) {
			return nil, boom
		})

		assert.ErrorIs(t, w.execute(ctx, taskID, h, 1, false), boom)
		task, err := q.GetTask(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, task.Status)
		assert.Equal(t, "conversion failed", task.Error)

		assert.ErrorIs(t, w.execute(ctx, taskID, h, 3, true), boom)
		task, err = q.GetTask(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, task.Status)
		assert.Equal(t, 3, task.Attempts)
		assert.NotNil(t, task.CompletedAt)
	})

	t.Run("missing task", func(t *testing.T) {
		h := HandlerFunc(func(ctx context.Context, task *Task) (interface{}, error) { return nil, nil })
		assert.Equal(t, ErrTaskNotFound, w.execute(ctx, "missing", h, 1, true))
	})
}

func TestNewQueue(t *testing.T) {
	mr := miniredis.RunT(t)

	q, err := NewQueue("redis", &Config{RedisAddr: mr.Addr()})
	require.NoError(t, err)
	defer q.Close()

	_, err = NewQueue("kafka", nil)
	assert.Error(t, err)
}

func TestTaskInfo(t *testing.T) {
	now := time.Now()
	startedAt := now.Add(-5 * time.Minute)
	completedAt := now.Add(-1 * time.Minute)

	task := &Task{
		ID:          "task-123",
		Type:        TaskDocumentIngest,
		Origin:      "a.md",
		Status:      StatusCompleted,
		Result:      json.RawMessage(`{"node_count":1}`),
		CreatedAt:   now.Add(-10 * time.Minute),
		StartedAt:   &startedAt,
		CompletedAt: &completedAt,
	}

	info := NewTaskInfo(task)
	assert.Equal(t, task.ID, info.ID)
	assert.Equal(t, task.Origin, info.Origin)
	assert.Equal(t, task.Result, info.Result)
	assert.Equal(t, 100.0, info.Progress)

	task.Status = StatusPending
	assert.Equal(t, 0.0, NewTaskInfo(task).Progress)
}

func TestUnmarshalPayload_Empty(t *testing.T) {
	var p IngestPayload
	assert.Equal(t, ErrInvalidPayload, UnmarshalPayload(nil, &p))
}
