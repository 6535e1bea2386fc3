package model

import (
	"encoding/json"
	"time"

	"github.com/yumiao07/genshin-QA-system/internal/models"
	"github.com/yumiao07/genshin-QA-system/internal/services"
	"github.com/yumiao07/genshin-QA-system/internal/vectordb"
	"github.com/yumiao07/genshin-QA-system/pkg/taskqueue"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// QASourceInfo 问答来源信息
type QASourceInfo struct {
	ID          string `json:"id"`                     // 切块ID
	Character   string `json:"character"`              // 所属角色名称
	ChunkType   string `json:"chunk_type"`             // 切块类型
	SectionName string `json:"section_name,omitempty"` // 章节切块的章节名
	Text        string `json:"text"`                   // 切块正文
}

// QAResponse 问答响应
type QAResponse struct {
	Question     string         `json:"question"`      // 用户问题
	Answer       string         `json:"answer"`        // 生成的回答
	QuestionType string         `json:"question_type"` // 问题分类
	Cached       bool           `json:"cached"`        // 是否命中缓存
	Sources      []QASourceInfo `json:"sources"`       // 来源信息
}

// ConvertToSourceInfo 将向量数据库文档转换为来源信息
func ConvertToSourceInfo(docs []vectordb.Document) []QASourceInfo {
	if len(docs) == 0 {
		return []QASourceInfo{}
	}

	sources := make([]QASourceInfo, len(docs))
	for i, doc := range docs {
		sources[i] = QASourceInfo{
			ID:          doc.ID,
			Character:   doc.Character,
			ChunkType:   doc.ChunkType,
			SectionName: doc.SectionName,
			Text:        doc.Text,
		}
	}
	return sources
}

// CharacterSummary 角色列表项
type CharacterSummary struct {
	ID          string `json:"id"`                     // 角色ID
	Name        string `json:"name"`                   // 角色名称
	Element     string `json:"element,omitempty"`      // 元素属性
	Weapon      string `json:"weapon,omitempty"`       // 武器类型
	Rarity      int    `json:"rarity"`                 // 稀有度
	Region      string `json:"region,omitempty"`       // 所属地区
	Title       string `json:"title,omitempty"`        // 称号
	RoleSummary string `json:"role_summary,omitempty"` // 定位摘要
	ChunkCount  int    `json:"chunk_count"`            // 切块数量
}

// NewCharacterSummary 从数据库模型构建角色列表项
func NewCharacterSummary(c *models.Character) CharacterSummary {
	return CharacterSummary{
		ID:          c.ID,
		Name:        c.Name,
		Element:     c.Element,
		Weapon:      c.Weapon,
		Rarity:      c.Rarity,
		Region:      c.Region,
		Title:       c.Title,
		RoleSummary: c.RoleSummary,
		ChunkCount:  c.ChunkCount,
	}
}

// CorpusStatsInfo 语料库统计信息
type CorpusStatsInfo struct {
	TotalCharacters int64          `json:"total_characters"` // 角色总数
	TotalVectors    int            `json:"total_vectors"`    // 向量总数
	ByElement       map[string]int `json:"by_element"`       // 按元素分布
	ByWeapon        map[string]int `json:"by_weapon"`        // 按武器分布
	ByRegion        map[string]int `json:"by_region"`        // 按地区分布
	ByRarity        map[int]int    `json:"by_rarity"`        // 按稀有度分布
	ByRole          map[string]int `json:"by_role"`           // 按定位摘要分布
	ByCharacterType map[string]int `json:"by_character_type"` // 按角色类型分布
	MissingFields   map[string]int `json:"missing_fields"`    // 关键字段缺失计数
	LastCrawlAt     string         `json:"last_crawl_at,omitempty"` // 最近一次爬取时间
}

// NewCorpusStatsInfo 从服务层统计结果构建统计信息
func NewCorpusStatsInfo(stats *services.CorpusStats) *CorpusStatsInfo {
	info := &CorpusStatsInfo{
		TotalCharacters: stats.TotalCharacters,
		TotalVectors:    stats.TotalVectors,
		ByElement:       stats.ByElement,
		ByWeapon:        stats.ByWeapon,
		ByRegion:        stats.ByRegion,
		ByRarity:        stats.ByRarity,
		ByRole:          stats.ByRole,
		ByCharacterType: stats.ByCharacterType,
		MissingFields:   stats.MissingFields,
	}
	if stats.LastCrawl != nil {
		info.LastCrawlAt = stats.LastCrawl.StartedAt.Format(time.RFC3339)
	}
	return info
}

// CharacterListMeta 角色列表的元信息，分页信息和语料库统计一起返回
type CharacterListMeta struct {
	Total    int64            `json:"total"`           // 符合条件的角色总数
	Page     int              `json:"page"`            // 当前页码
	PageSize int              `json:"page_size"`       // 每页大小
	Stats    *CorpusStatsInfo `json:"stats,omitempty"` // 语料库统计
}

// CharacterListResponse 角色列表响应
type CharacterListResponse struct {
	Characters []CharacterSummary `json:"characters"` // 角色列表
	Meta       CharacterListMeta  `json:"meta"`       // 元信息
}

// CharacterDetailResponse 角色详情响应
type CharacterDetailResponse struct {
	CharacterSummary
	URL            string            `json:"url,omitempty"`              // wiki页面URL
	ModelType      string            `json:"model_type,omitempty"`       // 模型体型
	RealName       string            `json:"real_name,omitempty"`        // 真实姓名
	Constellation  string            `json:"constellation,omitempty"`    // 命之座
	CharacterType  string            `json:"character_type,omitempty"`   // 角色类型
	Affiliations   []string          `json:"affiliations,omitempty"`     // 所属组织
	HowToObtain    []string          `json:"how_to_obtain,omitempty"`    // 获取方式
	VoiceActors    map[string]string `json:"voice_actors,omitempty"`     // 配音演员
	EventWishCount *int              `json:"event_wish_count,omitempty"` // 限定祈愿次数
	ReleaseDate    string            `json:"release_date,omitempty"`     // 上线日期
	Birthday       string            `json:"birthday,omitempty"`         // 生日
	SpecialDish    string            `json:"special_dish,omitempty"`     // 特殊料理
	Namecard       string            `json:"namecard,omitempty"`         // 名片
	Description    string            `json:"description,omitempty"`      // 背景描述
	UpdatedAt      string            `json:"updated_at"`                 // 记录更新时间
}

// NewCharacterDetail 从数据库模型构建角色详情
func NewCharacterDetail(c *models.Character) *CharacterDetailResponse {
	detail := &CharacterDetailResponse{
		CharacterSummary: NewCharacterSummary(c),
		URL:              c.URL,
		ModelType:        c.ModelType,
		RealName:         c.RealName,
		Constellation:    c.Constellation,
		CharacterType:    c.CharacterType,
		EventWishCount:   c.EventWishCount,
		ReleaseDate:      c.ReleaseDate,
		Birthday:         c.Birthday,
		SpecialDish:      c.SpecialDish,
		Namecard:         c.Namecard,
		Description:      c.Description,
		UpdatedAt:        c.UpdatedAt.Format(time.RFC3339),
	}

	// JSON列解码失败时保持空值，不影响其余字段
	_ = json.Unmarshal(c.Affiliations, &detail.Affiliations)
	_ = json.Unmarshal(c.HowToObtain, &detail.HowToObtain)
	_ = json.Unmarshal(c.VoiceActors, &detail.VoiceActors)

	return detail
}

// CharacterPageResponse 角色页面渲染响应
type CharacterPageResponse struct {
	ID    string `json:"id"`              // 角色ID
	Name  string `json:"name"`            // 角色名称
	Title string `json:"title,omitempty"` // 称号
	HTML  string `json:"html"`            // 渲染后的HTML内容
}

// RebuildResponse 语料库重建响应
type RebuildResponse struct {
	TaskID      string  `json:"task_id"`          // 任务ID
	Status      string  `json:"status"`           // 任务状态
	Async       bool    `json:"async"`            // 是否异步执行
	Progress    float64 `json:"progress"`         // 处理进度
	Error       string  `json:"error,omitempty"`  // 错误信息
	CompletedAt string  `json:"completed_at,omitempty"`
}

// NewRebuildResponse 从任务信息构建重建响应
func NewRebuildResponse(info *taskqueue.TaskInfo, async bool) *RebuildResponse {
	resp := &RebuildResponse{
		TaskID:   info.ID,
		Status:   string(info.Status),
		Async:    async,
		Progress: info.Progress,
		Error:    info.Error,
	}
	if info.CompletedAt != nil {
		resp.CompletedAt = info.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// TaskStatusResponse 任务状态查询响应
type TaskStatusResponse struct {
	TaskID      string          `json:"task_id"`            // 任务ID
	Type        string          `json:"type"`               // 任务类型
	Status      string          `json:"status"`             // 任务状态
	Progress    float64         `json:"progress"`           // 处理进度
	Error       string          `json:"error,omitempty"`    // 错误信息
	Result      json.RawMessage `json:"result,omitempty"`   // 任务结果
	CreatedAt   string          `json:"created_at"`         // 创建时间
	CompletedAt string          `json:"completed_at,omitempty"`
}

// NewTaskStatusResponse 从任务构建状态响应
func NewTaskStatusResponse(task *taskqueue.Task) *TaskStatusResponse {
	resp := &TaskStatusResponse{
		TaskID:    task.ID,
		Type:      string(task.Type),
		Status:    string(task.Status),
		Progress:  taskqueue.NewTaskInfo(task).Progress,
		Error:     task.Error,
		Result:    task.Result,
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	}
	if task.CompletedAt != nil {
		resp.CompletedAt = task.CompletedAt.Format(time.RFC3339)
	}
	return resp
}
