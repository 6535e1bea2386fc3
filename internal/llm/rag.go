package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// SystemMessage 问答助手的系统提示词
const SystemMessage = `You are a knowledgeable and friendly Genshin Impact assistant.

Your role:
- Help players with information about Genshin Impact characters
- Provide accurate, detailed information based on the context provided
- Be enthusiastic and friendly, but concise
- If you don't know something or it's not in the context, admit it honestly

Guidelines:
- Always base your answers on the provided CONTEXT
- Cite character names and specific details when relevant
- Keep responses clear and well-structured
- Use markdown formatting when helpful (lists, bold, etc.)
- If asked about game mechanics not in context, politely say you specialize in character information

Context Language: The context may contain information in English or mixed languages. Answer in the user's question language when possible.`

// BasicQATemplate 基础问答模板
// 包含变量：
// {{.Context}} - 检索的上下文
// {{.Question}} - 用户问题
const BasicQATemplate = `Use the following context about Genshin Impact characters to answer the question.

CONTEXT:
{{.Context}}

QUESTION: {{.Question}}

ANSWER (be helpful and specific):`

// CharacterInfoTemplate 角色详情模板
const CharacterInfoTemplate = `You are a Genshin Impact expert. Use the provided context to give detailed character information.

CONTEXT:
{{.Context}}

USER QUESTION: {{.Question}}

Please provide a comprehensive answer covering:
- Character name and basic info (element, weapon, region if mentioned)
- Relevant details from the context
- Any specific information requested

ANSWER:`

// ComparisonTemplate 角色对比模板
const ComparisonTemplate = `You are comparing Genshin Impact characters based on the provided context.

CONTEXT:
{{.Context}}

COMPARISON QUESTION: {{.Question}}

Analyze the context and provide:
1. Key similarities between the characters
2. Main differences
3. Specific stats or abilities if mentioned

COMPARISON:`

// RecommendationTemplate 角色推荐模板
const RecommendationTemplate = `You are helping a Genshin Impact player choose characters based on their needs.

CONTEXT (Available character information):
{{.Context}}

PLAYER'S REQUEST: {{.Question}}

Based on the context, provide:
1. Recommended character(s) that fit the request
2. Why they are suitable
3. Key strengths for the player's needs

RECOMMENDATION:`

// QuestionType 问题类型
type QuestionType string

const (
	// QuestionBasic 一般性问题
	QuestionBasic QuestionType = "basic"
	// QuestionCharacterInfo 角色详情类问题
	QuestionCharacterInfo QuestionType = "character_info"
	// QuestionComparison 角色对比类问题
	QuestionComparison QuestionType = "comparison"
	// QuestionRecommendation 角色推荐类问题
	QuestionRecommendation QuestionType = "recommendation"
)

// 各问题类型的关键词，按优先级排列：对比 > 推荐 > 角色详情
var (
	comparisonKeywords = []string{
		"compare", " vs ", " vs.", "versus", "better than", "difference between", "differences between",
	}
	recommendationKeywords = []string{
		"recommend", "suggest", "should i use", "should i pull", "best character", "who should", "which character",
	}
	characterInfoKeywords = []string{
		"who is", "tell me about", "what is the element", "what weapon", "information about", "details about",
	}
)

// ClassifyQuestion 根据关键词判断问题类型并选择模板
func ClassifyQuestion(question string) QuestionType {
	q := strings.ToLower(question)

	for _, kw := range comparisonKeywords {
		if strings.Contains(q, kw) {
			return QuestionComparison
		}
	}
	for _, kw := range recommendationKeywords {
		if strings.Contains(q, kw) {
			return QuestionRecommendation
		}
	}
	for _, kw := range characterInfoKeywords {
		if strings.Contains(q, kw) {
			return QuestionCharacterInfo
		}
	}

	return QuestionBasic
}

// TemplateFor 返回问题类型对应的提示词模板
func TemplateFor(qt QuestionType) string {
	switch qt {
	case QuestionComparison:
		return ComparisonTemplate
	case QuestionRecommendation:
		return RecommendationTemplate
	case QuestionCharacterInfo:
		return CharacterInfoTemplate
	default:
		return BasicQATemplate
	}
}

// ContextSource 传给RAG的检索结果
type ContextSource struct {
	ID        string  // 切块ID
	Character string  // 角色名称
	Content   string  // 切块文本
	Score     float32 // 检索相似度
}

// FormatContext 将检索结果格式化为上下文文本
// 每条结果带角色来源标注
func FormatContext(sources []ContextSource) string {
	if len(sources) == 0 {
		return "No relevant information found."
	}

	var sb strings.Builder
	for i, src := range sources {
		character := src.Character
		if character == "" {
			character = "Unknown"
		}
		sb.WriteString(fmt.Sprintf("--- Source %d: %s ---\n%s\n\n", i+1, character, src.Content))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RAGConfig 检索增强生成配置
type RAGConfig struct {
	// 固定提示词模板，为空时根据问题类型自动选择
	Template string
	// 最大Token数
	MaxTokens int
	// 温度参数
	Temperature float32
	// 超时时间
	Timeout time.Duration
	// 是否带上引用来源
	IncludeSources bool
}

// DefaultRAGConfig 默认RAG配置
func DefaultRAGConfig() *RAGConfig {
	return &RAGConfig{
		MaxTokens:      2048,
		Temperature:    0.7,
		Timeout:        30 * time.Second,
		IncludeSources: true,
	}
}

// RAGService 实现检索增强生成服务
type RAGService struct {
	Client Client       // 大模型客户端
	config *RAGConfig   // 配置
	mu     sync.RWMutex // 配置互斥锁
}

// NewRAG 创建新的检索增强生成服务
func NewRAG(client Client, opts ...RAGOption) *RAGService {
	cfg := DefaultRAGConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &RAGService{
		Client: client,
		config: cfg,
	}
}

// RAGOption RAG配置选项函数类型
type RAGOption func(*RAGConfig)

// WithTemplate 固定使用指定提示词模板
func WithTemplate(template string) RAGOption {
	return func(c *RAGConfig) {
		c.Template = template
	}
}

// WithRAGMaxTokens 设置最大Token数
func WithRAGMaxTokens(tokens int) RAGOption {
	return func(c *RAGConfig) {
		c.MaxTokens = tokens
	}
}

// WithRAGTemperature 设置温度参数
func WithRAGTemperature(temp float32) RAGOption {
	return func(c *RAGConfig) {
		c.Temperature = temp
	}
}

// WithRAGTimeout 设置请求超时时间
func WithRAGTimeout(timeout time.Duration) RAGOption {
	return func(c *RAGConfig) {
		c.Timeout = timeout
	}
}

// WithSources 设置是否包含引用来源
func WithSources(include bool) RAGOption {
	return func(c *RAGConfig) {
		c.IncludeSources = include
	}
}

// Answer 根据检索上下文和问题生成回答
func (r *RAGService) Answer(ctx context.Context, question string, sources []ContextSource) (*RAGResponse, error) {
	if question == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, "question cannot be empty")
	}

	r.mu.RLock()
	cfg := r.config
	r.mu.RUnlock()

	// 创建带超时的上下文
	ctxWithTimeout, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	// 构建提示词
	questionType := ClassifyQuestion(question)
	prompt := r.buildPrompt(question, questionType, sources)

	// 调用大模型生成回答
	response, err := r.Client.Chat(
		ctxWithTimeout,
		[]Message{
			{Role: RoleSystem, Content: SystemMessage},
			{Role: RoleUser, Content: prompt},
		},
		WithChatMaxTokens(cfg.MaxTokens),
		WithChatTemperature(cfg.Temperature),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %v", err)
	}

	// 构建RAG响应
	ragResponse := &RAGResponse{
		Answer:       response.Text,
		QuestionType: questionType,
		TokenCount:   response.TokenCount,
	}

	// 如果需要包含引用来源，添加到响应中
	if cfg.IncludeSources && len(sources) > 0 {
		refs := make([]SourceReference, len(sources))
		for i, src := range sources {
			refs[i] = SourceReference{
				ID:        src.ID,
				Character: src.Character,
				Content:   src.Content,
				Score:     src.Score,
			}
		}
		ragResponse.Sources = refs
	}

	return ragResponse, nil
}

// buildPrompt 构建增强提示词
func (r *RAGService) buildPrompt(question string, questionType QuestionType, sources []ContextSource) string {
	r.mu.RLock()
	template := r.config.Template
	r.mu.RUnlock()

	if template == "" {
		template = TemplateFor(questionType)
	}

	// 格式化上下文
	formattedContext := FormatContext(sources)

	// 简单的模板替换
	prompt := template
	prompt = strings.ReplaceAll(prompt, "{{.Question}}", question)
	prompt = strings.ReplaceAll(prompt, "{{.Context}}", formattedContext)

	return prompt
}

// SetTemplate 设置自定义提示词模板
func (r *RAGService) SetTemplate(template string) *RAGService {
	r.mu.Lock()
	r.config.Template = template
	r.mu.Unlock()
	return r
}
