package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yumiao07/genshin-QA-system/api/handler"
	"github.com/yumiao07/genshin-QA-system/api/middleware"
	"github.com/yumiao07/genshin-QA-system/api/model"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	qaHandler *handler.QAHandler,
	characterHandler *handler.CharacterHandler,
	corpusHandler *handler.CorpusHandler,
) *gin.Engine {
	// 注册自定义参数校验规则
	model.RegisterValidators()

	router := gin.New()

	// 应用全局中间件
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	// 在调试模式下记录请求体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestLogger())
	}

	// 创建API分组
	api := router.Group("/api")
	{
		// 问答API - POST /api/qa
		api.POST("/qa", qaHandler.AnswerQuestion)

		// 角色查询API
		characterGroup := api.Group("/characters")
		{
			// 角色列表（含语料库统计） - GET /api/characters
			characterGroup.GET("", characterHandler.ListCharacters)

			// 角色详情 - GET /api/characters/:name
			characterGroup.GET("/:name", characterHandler.GetCharacter)

			// 角色页面HTML - GET /api/characters/:name/page
			characterGroup.GET("/:name/page", characterHandler.GetCharacterPage)
		}

		// 语料库管理API
		corpusGroup := api.Group("/corpus")
		{
			// 触发全量重建 - POST /api/corpus/rebuild
			corpusGroup.POST("/rebuild", corpusHandler.RebuildCorpus)

			// 查询重建任务状态 - GET /api/corpus/tasks/:id
			corpusGroup.GET("/tasks/:id", corpusHandler.GetTaskStatus)
		}

		// 健康检查API - GET /api/health
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}
