package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisTest 设置一个miniredis实例用于测试
// 返回Redis地址和一个清理函数
func setupRedisTest(t *testing.T) (string, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	return mr.Addr(), func() {
		mr.Close()
	}
}

func newTestQueue(t *testing.T) (Queue, func()) {
	redisAddr, cleanup := setupRedisTest(t)

	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err, "创建Redis队列失败")

	return queue, func() {
		queue.Close()
		cleanup()
	}
}

func TestNewRedisQueue(t *testing.T) {
	queue, cleanup := newTestQueue(t)
	defer cleanup()
	assert.NotNil(t, queue)
}

func TestRedisQueueEnqueue(t *testing.T) {
	queue, cleanup := newTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("重建任务入队", func(t *testing.T) {
		taskID, err := queue.Enqueue(ctx, TaskCorpusReindex, "", &CorpusReindexPayload{})
		require.NoError(t, err, "入队不应该失败")
		assert.NotEmpty(t, taskID)

		task, err := queue.GetTask(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, TaskCorpusReindex, task.Type)
		assert.Equal(t, StatusPending, task.Status)
		assert.Equal(t, 2, task.MaxRetries)
	})

	t.Run("单角色任务携带载荷", func(t *testing.T) {
		payload := &CharacterProcessPayload{CharacterName: "Diluc"}
		taskID, err := queue.Enqueue(ctx, TaskCharacterProcess, "diluc", payload)
		require.NoError(t, err)

		task, err := queue.GetTask(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, "diluc", task.CharacterID)

		var decoded CharacterProcessPayload
		require.NoError(t, UnmarshalPayload(task.Payload, &decoded))
		assert.Equal(t, "Diluc", decoded.CharacterName)
	})

	t.Run("获取不存在的任务", func(t *testing.T) {
		_, err := queue.GetTask(ctx, "missing-task-id")
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestRedisQueueGetTasksByCharacter(t *testing.T) {
	queue, cleanup := newTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	id1, err := queue.Enqueue(ctx, TaskCharacterProcess, "diluc", &CharacterProcessPayload{CharacterName: "Diluc"})
	require.NoError(t, err)
	id2, err := queue.Enqueue(ctx, TaskCharacterProcess, "diluc", &CharacterProcessPayload{CharacterName: "Diluc"})
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, TaskCharacterProcess, "jean", &CharacterProcessPayload{CharacterName: "Jean"})
	require.NoError(t, err)

	tasks, err := queue.GetTasksByCharacter(ctx, "diluc")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	ids := map[string]bool{}
	for _, task := range tasks {
		ids[task.ID] = true
		assert.Equal(t, "diluc", task.CharacterID)
	}
	assert.True(t, ids[id1])
	assert.True(t, ids[id2])

	t.Run("没有任务的角色返回空列表", func(t *testing.T) {
		tasks, err := queue.GetTasksByCharacter(ctx, "venti")
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})
}

func TestRedisQueueUpdateTaskStatus(t *testing.T) {
	queue, cleanup := newTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskCorpusReindex, "", &CorpusReindexPayload{})
	require.NoError(t, err)

	t.Run("更新为处理中记录开始时间", func(t *testing.T) {
		require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, ""))
		task, err := queue.GetTask(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, StatusProcessing, task.Status)
		assert.NotNil(t, task.StartedAt)
		assert.Nil(t, task.CompletedAt)
	})

	t.Run("完成时回写结果", func(t *testing.T) {
		result := &CorpusReindexResult{Characters: 2, Chunks: 10, Indexed: 10}
		require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, ""))

		task, err := queue.GetTask(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, task.Status)
		assert.NotNil(t, task.CompletedAt)

		var decoded CorpusReindexResult
		require.NoError(t, UnmarshalPayload(task.Result, &decoded))
		assert.Equal(t, 10, decoded.Indexed)
	})

	t.Run("失败时记录错误信息", func(t *testing.T) {
		failedID, err := queue.Enqueue(ctx, TaskCorpusReindex, "", nil)
		require.NoError(t, err)
		require.NoError(t, queue.UpdateTaskStatus(ctx, failedID, StatusFailed, nil, "snapshot missing"))

		task, err := queue.GetTask(ctx, failedID)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, task.Status)
		assert.Equal(t, "snapshot missing", task.Error)
	})
}

func TestRedisQueueWaitForTask(t *testing.T) {
	queue, cleanup := newTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskCorpusReindex, "", nil)
	require.NoError(t, err)

	t.Run("已完成的任务立即返回", func(t *testing.T) {
		require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, nil, ""))
		task, err := queue.WaitForTask(ctx, taskID, time.Second)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, task.Status)
	})

	t.Run("等待超时", func(t *testing.T) {
		pendingID, err := queue.Enqueue(ctx, TaskCorpusReindex, "", nil)
		require.NoError(t, err)
		_, err = queue.WaitForTask(ctx, pendingID, 100*time.Millisecond)
		assert.ErrorIs(t, err, ErrTaskTimeout)
	})
}

func TestRedisQueueDeleteTask(t *testing.T) {
	queue, cleanup := newTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskCharacterProcess, "diluc", &CharacterProcessPayload{CharacterName: "Diluc"})
	require.NoError(t, err)

	require.NoError(t, queue.DeleteTask(ctx, taskID))

	_, err = queue.GetTask(ctx, taskID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	tasks, err := queue.GetTasksByCharacter(ctx, "diluc")
	require.NoError(t, err)
	assert.Empty(t, tasks, "删除后角色任务集合不应该再包含该任务")
}

func TestQueueFactory(t *testing.T) {
	t.Run("未注册的实现", func(t *testing.T) {
		_, err := NewQueue("kafka", nil)
		assert.Error(t, err)
	})

	t.Run("redis工厂已注册", func(t *testing.T) {
		redisAddr, cleanup := setupRedisTest(t)
		defer cleanup()

		queue, err := NewQueue("redis", &Config{RedisAddr: redisAddr, RetryLimit: 1})
		require.NoError(t, err)
		defer queue.Close()
		assert.NotNil(t, queue)
	})
}

func TestTaskInfoProgress(t *testing.T) {
	task := &Task{ID: "t1", Type: TaskCorpusReindex, Status: StatusPending}
	assert.Equal(t, 0.0, NewTaskInfo(task).Progress)

	task.Status = StatusProcessing
	assert.Equal(t, 50.0, NewTaskInfo(task).Progress)

	task.Status = StatusCompleted
	assert.Equal(t, 100.0, NewTaskInfo(task).Progress)
}
