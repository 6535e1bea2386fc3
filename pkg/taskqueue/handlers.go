package taskqueue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yumiao07/genshin-QA-system/internal/processor"
)

// CorpusPipeline 语料库处理流水线接口
// 由services层的语料库服务实现，这里只依赖任务需要的三个环节
type CorpusPipeline interface {
	// LoadSnapshot 从存储加载快照，name为空表示latest
	LoadSnapshot(name string) ([]*processor.RawCharacter, error)

	// Process 结构化处理原始角色记录并持久化
	Process(ctx context.Context, raws []*processor.RawCharacter) (*processor.BatchResult, error)

	// Index 向量化切块并写入向量数据库
	Index(ctx context.Context, chunks []processor.Chunk) (int, error)
}

// CorpusHandler 语料库任务处理器
// 处理单角色处理任务和全量重建任务
type CorpusHandler struct {
	pipeline CorpusPipeline
	queue    Queue // 可选，用于回写任务结果
	logger   *logrus.Logger
}

// NewCorpusHandler 创建语料库任务处理器
// queue可以为nil，此时任务结果只记录日志不回写
func NewCorpusHandler(pipeline CorpusPipeline, queue Queue, logger *logrus.Logger) *CorpusHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CorpusHandler{
		pipeline: pipeline,
		queue:    queue,
		logger:   logger,
	}
}

// GetTaskTypes 返回支持的任务类型
func (h *CorpusHandler) GetTaskTypes() []TaskType {
	return []TaskType{TaskCharacterProcess, TaskCorpusReindex}
}

// ProcessTask 处理任务，按类型分发
func (h *CorpusHandler) ProcessTask(ctx context.Context, task *Task) error {
	switch task.Type {
	case TaskCharacterProcess:
		return h.processCharacter(ctx, task)
	case TaskCorpusReindex:
		return h.reindexCorpus(ctx, task)
	default:
		return fmt.Errorf("unsupported task type: %s", task.Type)
	}
}

// processCharacter 从快照重新处理并索引单个角色
func (h *CorpusHandler) processCharacter(ctx context.Context, task *Task) error {
	var payload CharacterProcessPayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return ErrInvalidPayload
	}
	if strings.TrimSpace(payload.CharacterName) == "" {
		return fmt.Errorf("%w: character name is required", ErrInvalidPayload)
	}

	raws, err := h.pipeline.LoadSnapshot(payload.Snapshot)
	if err != nil {
		return err
	}

	var target *processor.RawCharacter
	for _, raw := range raws {
		if strings.EqualFold(raw.Name, payload.CharacterName) {
			target = raw
			break
		}
	}
	if target == nil {
		return fmt.Errorf("character %s not found in snapshot", payload.CharacterName)
	}

	batch, err := h.pipeline.Process(ctx, []*processor.RawCharacter{target})
	if err != nil {
		return err
	}
	if batch.Succeeded == 0 {
		return fmt.Errorf("failed to process character %s", payload.CharacterName)
	}

	indexed, err := h.pipeline.Index(ctx, batch.Chunks)
	if err != nil {
		return err
	}

	result := &CharacterProcessResult{
		CharacterID: task.CharacterID,
		Chunks:      len(batch.Chunks),
		Indexed:     indexed,
	}
	h.saveResult(ctx, task.ID, result)

	h.logger.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"character": payload.CharacterName,
		"indexed":   indexed,
	}).Info("Character processed and indexed")

	return nil
}

// reindexCorpus 从快照全量重建语料库
func (h *CorpusHandler) reindexCorpus(ctx context.Context, task *Task) error {
	var payload CorpusReindexPayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return ErrInvalidPayload
	}

	raws, err := h.pipeline.LoadSnapshot(payload.Snapshot)
	if err != nil {
		return err
	}

	batch, err := h.pipeline.Process(ctx, raws)
	if err != nil {
		return err
	}

	indexed, err := h.pipeline.Index(ctx, batch.Chunks)
	if err != nil {
		return err
	}

	result := &CorpusReindexResult{
		Characters: batch.Succeeded,
		Chunks:     len(batch.Chunks),
		Indexed:    indexed,
		Failed:     batch.FailedList,
		Snapshot:   payload.Snapshot,
	}
	h.saveResult(ctx, task.ID, result)

	h.logger.WithFields(logrus.Fields{
		"task_id":    task.ID,
		"characters": batch.Succeeded,
		"indexed":    indexed,
	}).Info("Corpus reindexed")

	return nil
}

// saveResult 回写任务结果
// 状态仍由外层的worker统一更新，这里只补结果数据
func (h *CorpusHandler) saveResult(ctx context.Context, taskID string, result interface{}) {
	if h.queue == nil {
		return
	}
	if err := h.queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, result, ""); err != nil {
		h.logger.WithError(err).WithField("task_id", taskID).Warn("Failed to save task result")
	}
}

// Dispatcher 任务分发器
// 配置了队列时异步入队，没有队列时直接同步执行处理器
type Dispatcher struct {
	queue   Queue
	handler Handler
	logger  *logrus.Logger
}

// NewDispatcher 创建任务分发器
// queue为nil表示队列被禁用，所有任务降级为同步执行
func NewDispatcher(queue Queue, handler Handler, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		queue:   queue,
		handler: handler,
		logger:  logger,
	}
}

// Async 返回分发器是否工作在异步模式
func (d *Dispatcher) Async() bool {
	return d.queue != nil
}

// Dispatch 分发任务
// 异步模式下返回pending状态的任务信息，同步模式下阻塞执行并返回最终状态
func (d *Dispatcher) Dispatch(ctx context.Context, taskType TaskType, characterID string, payload interface{}) (*TaskInfo, error) {
	if d.queue != nil {
		taskID, err := d.queue.Enqueue(ctx, taskType, characterID, payload)
		if err != nil {
			return nil, err
		}
		task, err := d.queue.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		return NewTaskInfo(task), nil
	}

	return d.runSync(ctx, taskType, characterID, payload)
}

// runSync 同步执行任务
func (d *Dispatcher) runSync(ctx context.Context, taskType TaskType, characterID string, payload interface{}) (*TaskInfo, error) {
	if d.handler == nil {
		return nil, fmt.Errorf("no handler configured for synchronous execution")
	}

	payloadBytes, err := MarshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := time.Now()
	task := &Task{
		ID:          uuid.New().String(),
		Type:        taskType,
		CharacterID: characterID,
		Status:      StatusProcessing,
		Payload:     payloadBytes,
		CreatedAt:   now,
		UpdatedAt:   now,
		StartedAt:   &now,
	}

	d.logger.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": taskType,
	}).Info("Queue disabled, running task synchronously")

	err = d.handler.ProcessTask(ctx, task)
	done := time.Now()
	task.CompletedAt = &done
	task.UpdatedAt = done

	if err != nil {
		task.Status = StatusFailed
		task.Error = err.Error()
		return NewTaskInfo(task), err
	}

	task.Status = StatusCompleted
	return NewTaskInfo(task), nil
}
