package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yumiao07/genshin-QA-system/api/middleware"
	"github.com/yumiao07/genshin-QA-system/api/model"
	"github.com/yumiao07/genshin-QA-system/internal/services"
)

// QAHandler 处理问答相关的API请求
type QAHandler struct {
	qaService *services.QAService // 问答服务
	logger    *logrus.Logger      // 日志记录器
}

// NewQAHandler 创建新的问答处理器
func NewQAHandler(qaService *services.QAService) *QAHandler {
	return &QAHandler{
		qaService: qaService,
		logger:    middleware.GetLogger(),
	}
}

// AnswerQuestion 处理问答请求
// POST /api/qa
func (h *QAHandler) AnswerQuestion(c *gin.Context) {
	var req model.QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid question request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"invalid request parameters",
		))
		return
	}

	ctx := c.Request.Context()

	var result *services.QAResult
	var err error

	// 角色过滤优先于元数据过滤
	switch {
	case req.Character != "":
		h.logger.WithFields(logrus.Fields{
			"question":  req.Question,
			"character": req.Character,
		}).Info("Question scoped to character")
		result, err = h.qaService.AnswerAboutCharacter(ctx, req.Question, services.CharacterID(req.Character))

	case len(req.Metadata) > 0:
		h.logger.WithFields(logrus.Fields{
			"question": req.Question,
			"metadata": req.Metadata,
		}).Info("Question with metadata filter")
		result, err = h.qaService.AnswerWithMetadata(ctx, req.Question, req.Metadata)

	default:
		h.logger.WithField("question", req.Question).Info("General question")
		result, err = h.qaService.Answer(ctx, req.Question)
	}

	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"question": req.Question,
		}).Error("Failed to answer question")

		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"failed to answer question: "+err.Error(),
		))
		return
	}

	resp := model.QAResponse{
		Question:     req.Question,
		Answer:       result.Answer,
		QuestionType: result.QuestionType,
		Cached:       result.Cached,
		Sources:      model.ConvertToSourceInfo(result.Sources),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
