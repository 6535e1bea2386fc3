package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yumiao07/genshin-QA-system/api/middleware"
	"github.com/yumiao07/genshin-QA-system/api/model"
	"github.com/yumiao07/genshin-QA-system/pkg/taskqueue"
)

// CorpusHandler 处理语料库管理相关的API请求
type CorpusHandler struct {
	dispatcher *taskqueue.Dispatcher // 任务分发器
	queue      taskqueue.Queue       // 任务队列，同步模式下为nil
	logger     *logrus.Logger        // 日志记录器
}

// NewCorpusHandler 创建新的语料库处理器
func NewCorpusHandler(dispatcher *taskqueue.Dispatcher, queue taskqueue.Queue) *CorpusHandler {
	return &CorpusHandler{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     middleware.GetLogger(),
	}
}

// RebuildCorpus 触发语料库全量重建
// POST /api/corpus/rebuild
// 配置了队列时异步入队返回202，否则同步执行返回200
func (h *CorpusHandler) RebuildCorpus(c *gin.Context) {
	var req model.CorpusRebuildRequest
	// 请求体可以为空，有内容时才绑定
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse(
				http.StatusBadRequest,
				"invalid request parameters",
			))
			return
		}
	}

	async := h.dispatcher.Async()
	payload := &taskqueue.CorpusReindexPayload{Snapshot: req.Snapshot}

	info, err := h.dispatcher.Dispatch(c.Request.Context(), taskqueue.TaskCorpusReindex, "", payload)
	if err != nil {
		h.logger.WithError(err).Error("Failed to rebuild corpus")

		// 同步执行失败时带上任务信息，方便排查
		if info != nil {
			resp := model.NewErrorResponse(http.StatusInternalServerError, "corpus rebuild failed: "+err.Error())
			resp.Data = model.NewRebuildResponse(info, async)
			c.JSON(http.StatusInternalServerError, resp)
			return
		}

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"failed to dispatch rebuild task",
		))
		return
	}

	status := http.StatusOK
	if async {
		status = http.StatusAccepted
	}

	h.logger.WithFields(logrus.Fields{
		"task_id": info.ID,
		"async":   async,
		"status":  info.Status,
	}).Info("Corpus rebuild dispatched")

	c.JSON(status, model.NewSuccessResponse(model.NewRebuildResponse(info, async)))
}

// GetTaskStatus 查询重建任务状态
// GET /api/corpus/tasks/:id
// 只有异步模式下才有可查询的任务记录
func (h *CorpusHandler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"task id is required",
		))
		return
	}

	if h.queue == nil {
		c.JSON(http.StatusNotFound, model.NewErrorResponse(
			http.StatusNotFound,
			"task queue is disabled, tasks run synchronously",
		))
		return
	}

	task, err := h.queue.GetTask(c.Request.Context(), taskID)
	if err != nil {
		if err == taskqueue.ErrTaskNotFound {
			c.JSON(http.StatusNotFound, model.NewErrorResponse(
				http.StatusNotFound,
				"task not found: "+taskID,
			))
			return
		}

		h.logger.WithError(err).WithField("task_id", taskID).Error("Failed to get task")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"failed to get task status",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewTaskStatusResponse(task)))
}
