package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/sirupsen/logrus"

	"github.com/yumiao07/genshin-QA-system/api/middleware"
	"github.com/yumiao07/genshin-QA-system/api/model"
	"github.com/yumiao07/genshin-QA-system/internal/cache"
	"github.com/yumiao07/genshin-QA-system/internal/models"
	"github.com/yumiao07/genshin-QA-system/internal/repository"
	"github.com/yumiao07/genshin-QA-system/internal/services"
)

// 角色详情缓存的过期时间
const characterCacheTTL = time.Hour

// CharacterHandler 处理角色查询相关的API请求
type CharacterHandler struct {
	repo    repository.CharacterRepository // 角色仓储
	corpus  *services.CorpusService        // 语料库服务，提供统计信息
	cache   cache.Cache                    // 角色详情缓存，可以为nil
	logger  *logrus.Logger                 // 日志记录器
}

// NewCharacterHandler 创建新的角色处理器
func NewCharacterHandler(repo repository.CharacterRepository, corpus *services.CorpusService, characterCache cache.Cache) *CharacterHandler {
	return &CharacterHandler{
		repo:   repo,
		corpus: corpus,
		cache:  characterCache,
		logger: middleware.GetLogger(),
	}
}

// ListCharacters 角色列表，语料库统计随meta一起返回
// GET /api/characters
func (h *CharacterHandler) ListCharacters(c *gin.Context) {
	var req model.CharacterListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"invalid query parameters: "+err.Error(),
		))
		return
	}

	page := req.GetPage()
	pageSize := req.GetPageSize()
	offset := (page - 1) * pageSize

	characters, total, err := h.repo.List(offset, pageSize, req.Filters())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list characters")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"failed to list characters",
		))
		return
	}

	summaries := make([]model.CharacterSummary, 0, len(characters))
	for _, character := range characters {
		summaries = append(summaries, model.NewCharacterSummary(character))
	}

	resp := model.CharacterListResponse{
		Characters: summaries,
		Meta: model.CharacterListMeta{
			Total:    total,
			Page:     page,
			PageSize: pageSize,
		},
	}

	// 统计失败只影响meta，不影响列表本身
	if h.corpus != nil {
		if stats, err := h.corpus.Stats(); err == nil {
			resp.Meta.Stats = model.NewCorpusStatsInfo(stats)
		} else {
			h.logger.WithError(err).Warn("Failed to collect corpus stats")
		}
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetCharacter 角色详情
// GET /api/characters/:name
func (h *CharacterHandler) GetCharacter(c *gin.Context) {
	var req model.CharacterDetailRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"character name is required",
		))
		return
	}

	cacheKey := cache.CharacterCacheKey(req.Name)
	if h.cache != nil {
		if raw, found, err := h.cache.Get(cacheKey); err == nil && found {
			var detail model.CharacterDetailResponse
			if json.Unmarshal([]byte(raw), &detail) == nil {
				c.JSON(http.StatusOK, model.NewSuccessResponse(&detail))
				return
			}
		}
	}

	character, err := h.findCharacter(req.Name)
	if err != nil {
		h.respondCharacterError(c, req.Name, err)
		return
	}

	detail := model.NewCharacterDetail(character)
	if h.cache != nil {
		if payload, err := json.Marshal(detail); err == nil {
			_ = h.cache.Set(cacheKey, string(payload), characterCacheTTL)
		}
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(detail))
}

// GetCharacterPage 角色页面，规范文本渲染为HTML
// GET /api/characters/:name/page
func (h *CharacterHandler) GetCharacterPage(c *gin.Context) {
	var req model.CharacterDetailRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"character name is required",
		))
		return
	}

	character, err := h.findCharacter(req.Name)
	if err != nil {
		h.respondCharacterError(c, req.Name, err)
		return
	}

	resp := model.CharacterPageResponse{
		ID:    character.ID,
		Name:  character.Name,
		Title: character.Title,
		HTML:  renderMarkdown(character.FullText),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// findCharacter 先按名称查找，再按ID查找
// 路径参数既可能是"Hu Tao"也可能是"hu_tao"
func (h *CharacterHandler) findCharacter(name string) (*models.Character, error) {
	character, err := h.repo.GetByName(name)
	if err == nil {
		return character, nil
	}
	if errors.Is(err, models.ErrCharacterNotFound) {
		return h.repo.GetByID(services.CharacterID(name))
	}
	return nil, err
}

// respondCharacterError 区分角色不存在和内部错误
func (h *CharacterHandler) respondCharacterError(c *gin.Context, name string, err error) {
	if errors.Is(err, models.ErrCharacterNotFound) {
		c.JSON(http.StatusNotFound, model.NewErrorResponse(
			http.StatusNotFound,
			"character not found: "+name,
		))
		return
	}

	h.logger.WithError(err).WithField("character", name).Error("Failed to get character")
	c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
		http.StatusInternalServerError,
		"failed to get character",
	))
}

// renderMarkdown 把规范文本渲染为HTML
func renderMarkdown(content string) string {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	doc := mdParser.Parse([]byte(content))

	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})

	return string(markdown.Render(doc, renderer))
}
