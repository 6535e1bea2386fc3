package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yumiao07/genshin-QA-system/internal/cache"
	"github.com/yumiao07/genshin-QA-system/internal/embedding"
	"github.com/yumiao07/genshin-QA-system/internal/llm"
	"github.com/yumiao07/genshin-QA-system/internal/vectordb"
)

// 未命中任何相关切块时返回的兜底回答，不消耗LLM调用
const noContextAnswer = "I couldn't find relevant information about that in my knowledge base. " +
	"Try asking about a specific Genshin Impact character, or rebuild the corpus if it looks out of date."

// QAResult 问答结果
type QAResult struct {
	Answer       string              `json:"answer"`        // 生成的回答文本
	QuestionType string              `json:"question_type"` // 问题分类
	Sources      []vectordb.Document `json:"sources"`       // 回答引用的切块
	TokenCount   int                 `json:"token_count"`   // LLM消耗的token数
	Cached       bool                `json:"cached"`        // 是否命中缓存
}

// cachedAnswer 缓存中的问答载荷，回答和来源一起序列化
type cachedAnswer struct {
	Answer       string              `json:"answer"`
	QuestionType string              `json:"question_type"`
	Sources      []vectordb.Document `json:"sources"`
	TokenCount   int                 `json:"token_count"`
}

// QAService 问答服务
// 串联问题向量化、向量检索和RAG生成，结果写入缓存
type QAService struct {
	embedder    embedding.Client
	vectorDB    vectordb.Repository
	rag         *llm.RAGService
	cache       cache.Cache
	cacheTTL    time.Duration
	searchLimit int
	minScore    float32
	logger      *logrus.Logger
}

// QAOption 问答服务配置选项
type QAOption func(*QAService)

// WithCacheTTL 设置回答缓存的过期时间
func WithCacheTTL(ttl time.Duration) QAOption {
	return func(s *QAService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithSearchLimit 设置向量检索返回的切块数量
func WithSearchLimit(limit int) QAOption {
	return func(s *QAService) {
		if limit > 0 {
			s.searchLimit = limit
		}
	}
}

// WithMinScore 设置检索结果的最低相似度分数
func WithMinScore(score float32) QAOption {
	return func(s *QAService) {
		if score >= 0 {
			s.minScore = score
		}
	}
}

// WithQALogger 设置日志记录器
func WithQALogger(logger *logrus.Logger) QAOption {
	return func(s *QAService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewQAService 创建问答服务
// answerCache可以为nil，此时每次提问都会走完整流程
func NewQAService(embedder embedding.Client, vectorDB vectordb.Repository, rag *llm.RAGService, answerCache cache.Cache, opts ...QAOption) (*QAService, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedding client is required")
	}
	if vectorDB == nil {
		return nil, fmt.Errorf("vector repository is required")
	}
	if rag == nil {
		return nil, fmt.Errorf("rag service is required")
	}

	service := &QAService{
		embedder:    embedder,
		vectorDB:    vectorDB,
		rag:         rag,
		cache:       answerCache,
		cacheTTL:    24 * time.Hour,
		searchLimit: 5,
		minScore:    0.7,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Answer 回答问题，在整个语料库中检索上下文
func (s *QAService) Answer(ctx context.Context, question string) (*QAResult, error) {
	return s.answerWithFilter(ctx, question, "", nil, nil)
}

// AnswerAboutCharacter 回答问题，只在指定角色的切块中检索
func (s *QAService) AnswerAboutCharacter(ctx context.Context, question, characterID string) (*QAResult, error) {
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return s.Answer(ctx, question)
	}
	return s.answerWithFilter(ctx, question, characterID, []string{characterID}, nil)
}

// AnswerWithMetadata 回答问题，按元数据等值条件过滤检索结果
// 常见用法是按元素或地区筛选，例如 {"element": "Pyro"}
func (s *QAService) AnswerWithMetadata(ctx context.Context, question string, metadata map[string]interface{}) (*QAResult, error) {
	if len(metadata) == 0 {
		return s.Answer(ctx, question)
	}
	return s.answerWithFilter(ctx, question, metadataCacheTag(metadata), nil, metadata)
}

// answerWithFilter 问答核心流程：缓存 -> 向量化 -> 检索 -> RAG -> 缓存
func (s *QAService) answerWithFilter(ctx context.Context, question, filterTag string, characterIDs []string, metadata map[string]interface{}) (*QAResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}

	cacheKey := cache.AnswerCacheKey(question, filterTag)
	if result, ok := s.fromCache(cacheKey); ok {
		s.logger.WithField("question", question).Debug("QA cache hit")
		return result, nil
	}

	queryVector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	filter := vectordb.DefaultSearchFilter()
	filter.MaxResults = s.searchLimit
	filter.MinScore = s.minScore
	filter.CharacterIDs = characterIDs
	filter.Metadata = metadata

	results, err := s.vectorDB.Search(queryVector, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector database: %w", err)
	}

	if len(results) == 0 {
		s.logger.WithFields(logrus.Fields{
			"question": question,
			"filter":   filterTag,
		}).Info("No relevant chunks found for question")
		return &QAResult{Answer: noContextAnswer, QuestionType: string(llm.ClassifyQuestion(question))}, nil
	}

	contexts := make([]llm.ContextSource, 0, len(results))
	sources := make([]vectordb.Document, 0, len(results))
	for _, r := range results {
		contexts = append(contexts, llm.ContextSource{
			ID:        r.Document.ID,
			Character: r.Document.Character,
			Content:   r.Document.Text,
			Score:     r.Score,
		})
		sources = append(sources, r.Document)
	}

	response, err := s.rag.Answer(ctx, question, contexts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	result := &QAResult{
		Answer:       response.Answer,
		QuestionType: string(response.QuestionType),
		Sources:      sources,
		TokenCount:   response.TokenCount,
	}
	s.toCache(cacheKey, result)

	s.logger.WithFields(logrus.Fields{
		"question":      question,
		"question_type": result.QuestionType,
		"sources":       len(sources),
		"tokens":        result.TokenCount,
	}).Info("Question answered")

	return result, nil
}

// fromCache 读取缓存的问答结果，反序列化失败按未命中处理
func (s *QAService) fromCache(key string) (*QAResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, found, err := s.cache.Get(key)
	if err != nil || !found {
		return nil, false
	}

	var payload cachedAnswer
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		s.logger.WithError(err).Warn("Failed to decode cached answer, ignoring entry")
		return nil, false
	}
	return &QAResult{
		Answer:       payload.Answer,
		QuestionType: payload.QuestionType,
		Sources:      payload.Sources,
		TokenCount:   payload.TokenCount,
		Cached:       true,
	}, true
}

// toCache 写入问答结果缓存，失败只记日志不影响主流程
func (s *QAService) toCache(key string, result *QAResult) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(cachedAnswer{
		Answer:       result.Answer,
		QuestionType: result.QuestionType,
		Sources:      result.Sources,
		TokenCount:   result.TokenCount,
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode answer for caching")
		return
	}
	if err := s.cache.Set(key, string(payload), s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache answer")
	}
}

// ClearCache 清空问答缓存
func (s *QAService) ClearCache() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear()
}

// metadataCacheTag 把元数据条件压成稳定的缓存键片段
// map遍历无序，排序保证同一条件总是产生同一个键
func metadataCacheTag(metadata map[string]interface{}) string {
	parts := make([]string, 0, len(metadata))
	for k, v := range metadata {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, "&")
}
