package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/yumiao07/genshin-QA-system/internal/embedding"
	"github.com/yumiao07/genshin-QA-system/internal/models"
	"github.com/yumiao07/genshin-QA-system/internal/processor"
	"github.com/yumiao07/genshin-QA-system/internal/repository"
	"github.com/yumiao07/genshin-QA-system/internal/vectordb"
	"github.com/yumiao07/genshin-QA-system/internal/wiki"
	"github.com/yumiao07/genshin-QA-system/pkg/storage"
)

// CharacterCrawler 角色爬虫接口，便于测试时替换真实爬虫
type CharacterCrawler interface {
	FetchCharacterList(ctx context.Context) ([]wiki.CharacterRef, error)
	CrawlCharacters(ctx context.Context) (*wiki.CrawlResult, error)
}

// CorpusService 语料库服务
// 负责爬取 -> 快照归档 -> 结构化处理 -> 向量索引的完整流水线
type CorpusService struct {
	crawler   CharacterCrawler
	processor *processor.Processor
	repo      repository.CharacterRepository
	embedder  embedding.BatchProcessor
	vectorDB  vectordb.Repository
	store     storage.Storage
	logger    *logrus.Logger
}

// CorpusOption 语料库服务配置选项
type CorpusOption func(*CorpusService)

// WithCorpusLogger 设置日志记录器
func WithCorpusLogger(logger *logrus.Logger) CorpusOption {
	return func(s *CorpusService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCorpusService 创建语料库服务
func NewCorpusService(crawler CharacterCrawler, proc *processor.Processor, repo repository.CharacterRepository,
	embedder embedding.BatchProcessor, vectorDB vectordb.Repository, store storage.Storage, opts ...CorpusOption) (*CorpusService, error) {
	if proc == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("character repository is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("batch embedder is required")
	}
	if vectorDB == nil {
		return nil, fmt.Errorf("vector repository is required")
	}
	if store == nil {
		return nil, fmt.Errorf("snapshot storage is required")
	}

	service := &CorpusService{
		crawler:   crawler,
		processor: proc,
		repo:      repo,
		embedder:  embedder,
		vectorDB:  vectorDB,
		store:     store,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Crawl 执行一次全量爬取并归档快照
// 爬取批次写入crawl_records表，失败的角色名记录在批次里而不是中断任务
func (s *CorpusService) Crawl(ctx context.Context) (*models.CrawlRecord, []*processor.RawCharacter, error) {
	if s.crawler == nil {
		return nil, nil, fmt.Errorf("crawler is not configured")
	}

	record := &models.CrawlRecord{Status: models.CrawlStatusPending}
	if err := s.repo.CreateCrawlRecord(record); err != nil {
		return nil, nil, fmt.Errorf("failed to create crawl record: %w", err)
	}

	record.Status = models.CrawlStatusRunning
	if err := s.repo.UpdateCrawlRecord(record); err != nil {
		s.logger.WithError(err).Warn("Failed to mark crawl record as running")
	}

	result, err := s.crawler.CrawlCharacters(ctx)
	if err != nil {
		s.failCrawl(record, err)
		return record, nil, fmt.Errorf("crawl failed: %w", err)
	}

	snapshotKey, err := s.SaveSnapshot(result.Characters)
	if err != nil {
		s.failCrawl(record, err)
		return record, result.Characters, fmt.Errorf("failed to archive snapshot: %w", err)
	}

	now := time.Now()
	record.Status = models.CrawlStatusCompleted
	record.Total = len(result.Characters) + len(result.Failed)
	record.Succeeded = len(result.Characters)
	record.Failed = len(result.Failed)
	record.FailedNames = mustJSON(result.Failed)
	record.SnapshotKey = snapshotKey
	record.EndedAt = &now
	if err := s.repo.UpdateCrawlRecord(record); err != nil {
		s.logger.WithError(err).Warn("Failed to finalize crawl record")
	}

	s.logger.WithFields(logrus.Fields{
		"succeeded": record.Succeeded,
		"failed":    record.Failed,
		"snapshot":  snapshotKey,
	}).Info("Crawl completed")

	return record, result.Characters, nil
}

// failCrawl 把爬取批次标记为失败
func (s *CorpusService) failCrawl(record *models.CrawlRecord, cause error) {
	now := time.Now()
	record.Status = models.CrawlStatusFailed
	record.Error = cause.Error()
	record.EndedAt = &now
	if err := s.repo.UpdateCrawlRecord(record); err != nil {
		s.logger.WithError(err).Warn("Failed to mark crawl record as failed")
	}
}

// SaveSnapshot 把原始爬取结果归档为JSON快照
// 同时写入带日期的快照和characters_latest.json，返回带日期的快照名
func (s *CorpusService) SaveSnapshot(raws []*processor.RawCharacter) (string, error) {
	data, err := json.MarshalIndent(raws, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	name := storage.SnapshotName(time.Now())
	if _, err := s.store.Save(bytes.NewReader(data), name); err != nil {
		return "", fmt.Errorf("failed to save snapshot %s: %w", name, err)
	}
	if _, err := s.store.Save(bytes.NewReader(data), storage.LatestSnapshotName); err != nil {
		return "", fmt.Errorf("failed to update latest snapshot: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"snapshot":   name,
		"characters": len(raws),
		"bytes":      len(data),
	}).Info("Snapshot archived")

	return name, nil
}

// LoadSnapshot 从存储加载快照
// name为空时加载characters_latest.json
func (s *CorpusService) LoadSnapshot(name string) ([]*processor.RawCharacter, error) {
	if name == "" {
		name = storage.LatestSnapshotName
	}

	reader, err := s.store.Get(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", name, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", name, err)
	}

	var raws []*processor.RawCharacter
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", name, err)
	}
	return raws, nil
}

// Process 结构化处理原始角色记录并持久化
// 单个角色入库失败只记录并跳过，返回的BatchResult里的切块供后续索引使用
func (s *CorpusService) Process(ctx context.Context, raws []*processor.RawCharacter) (*processor.BatchResult, error) {
	if len(raws) == 0 {
		return nil, fmt.Errorf("no characters to process")
	}

	result := s.processor.ProcessAll(raws)

	chunkCounts := make(map[string]int)
	for _, chunk := range result.Chunks {
		chunkCounts[CharacterID(chunk.Character)]++
	}

	for _, info := range result.Characters {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		character := toCharacterModel(info)
		character.ChunkCount = chunkCounts[character.ID]
		if err := s.repo.Upsert(character); err != nil {
			s.logger.WithError(err).WithField("character", info.Name).Warn("Failed to persist character, skipping")
			continue
		}
	}

	if len(result.Chunks) > 0 {
		if err := s.repo.SaveChunks(toChunkModels(result.Chunks)); err != nil {
			return result, fmt.Errorf("failed to persist chunks: %w", err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"characters": result.Succeeded,
		"failed":     result.Failed,
		"chunks":     len(result.Chunks),
	}).Info("Characters processed and persisted")

	return result, nil
}

// Index 向量化切块并写入向量数据库
// 先删除涉及角色的旧向量再整批写入，返回成功索引的数量
func (s *CorpusService) Index(ctx context.Context, chunks []processor.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.ProcessChunks(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	seen := make(map[string]bool)
	for _, chunk := range chunks {
		characterID := CharacterID(chunk.Character)
		if seen[characterID] {
			continue
		}
		seen[characterID] = true
		if err := s.vectorDB.DeleteByCharacter(characterID); err != nil {
			s.logger.WithError(err).WithField("character", chunk.Character).Warn("Failed to drop stale vectors")
		}
	}

	docs := make([]vectordb.Document, 0, len(chunks))
	for _, chunk := range chunks {
		vector, ok := vectors[chunk.ID]
		if !ok {
			s.logger.WithField("chunk", chunk.ID).Warn("Chunk has no embedding, skipping")
			continue
		}
		docs = append(docs, vectordb.Document{
			ID:          chunk.ID,
			CharacterID: CharacterID(chunk.Character),
			Character:   chunk.Character,
			ChunkType:   string(chunk.ChunkType),
			SectionName: chunk.SectionName,
			Text:        chunk.Content,
			Vector:      vector,
			Metadata:    chunk.Metadata,
		})
	}

	if err := s.vectorDB.AddBatch(docs); err != nil {
		return 0, fmt.Errorf("failed to index vectors: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"chunks":  len(chunks),
		"indexed": len(docs),
	}).Info("Chunks indexed")

	return len(docs), nil
}

// RebuildResult 全量重建的汇总结果
type RebuildResult struct {
	Characters int      `json:"characters"` // 处理成功的角色数
	Chunks     int      `json:"chunks"`     // 生成的切块数
	Indexed    int      `json:"indexed"`    // 写入向量库的切块数
	Failed     []string `json:"failed"`     // 处理失败的角色名
	Snapshot   string   `json:"snapshot"`   // 使用的快照名
}

// Rebuild 从最新快照全量重建语料库
// 快照不存在时返回错误，提示先执行爬取
func (s *CorpusService) Rebuild(ctx context.Context) (*RebuildResult, error) {
	exists, err := s.store.Exists(storage.LatestSnapshotName)
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshot: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("no snapshot available, run a crawl first")
	}

	raws, err := s.LoadSnapshot(storage.LatestSnapshotName)
	if err != nil {
		return nil, err
	}

	batch, err := s.Process(ctx, raws)
	if err != nil {
		return nil, err
	}

	indexed, err := s.Index(ctx, batch.Chunks)
	if err != nil {
		return nil, err
	}

	result := &RebuildResult{
		Characters: batch.Succeeded,
		Chunks:     len(batch.Chunks),
		Indexed:    indexed,
		Failed:     batch.FailedList,
		Snapshot:   storage.LatestSnapshotName,
	}

	s.logger.WithFields(logrus.Fields{
		"characters": result.Characters,
		"chunks":     result.Chunks,
		"indexed":    result.Indexed,
	}).Info("Corpus rebuilt")

	return result, nil
}

// CorpusStats 语料库统计信息
type CorpusStats struct {
	TotalCharacters int64               `json:"total_characters"` // 角色总数
	TotalVectors    int                 `json:"total_vectors"`    // 向量总数
	ByElement       map[string]int      `json:"by_element"`       // 按元素分布
	ByWeapon        map[string]int      `json:"by_weapon"`        // 按武器分布
	ByRegion        map[string]int      `json:"by_region"`         // 按地区分布
	ByRarity        map[int]int         `json:"by_rarity"`         // 按稀有度分布
	ByRole          map[string]int      `json:"by_role"`           // 按定位摘要分布
	ByCharacterType map[string]int      `json:"by_character_type"` // 按角色类型分布
	MissingFields   map[string]int      `json:"missing_fields"`    // 关键字段缺失计数
	LastCrawl       *models.CrawlRecord `json:"last_crawl,omitempty"`
}

// Stats 统计语料库的角色分布和索引规模
func (s *CorpusService) Stats() (*CorpusStats, error) {
	characters, total, err := s.repo.List(0, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}

	stats := &CorpusStats{
		TotalCharacters: total,
		ByElement:       make(map[string]int),
		ByWeapon:        make(map[string]int),
		ByRegion:        make(map[string]int),
		ByRarity:        make(map[int]int),
		ByRole:          make(map[string]int),
		ByCharacterType: make(map[string]int),
		MissingFields: map[string]int{
			"element":      0,
			"weapon":       0,
			"region":       0,
			"description":  0,
			"voice_actors": 0,
		},
	}
	for _, c := range characters {
		stats.ByElement[orUnknown(c.Element)]++
		stats.ByWeapon[orUnknown(c.Weapon)]++
		stats.ByRegion[orUnknown(c.Region)]++
		stats.ByRarity[c.Rarity]++
		stats.ByRole[orUnknown(c.RoleSummary)]++
		stats.ByCharacterType[orUnknown(c.CharacterType)]++

		if c.Element == "" {
			stats.MissingFields["element"]++
		}
		if c.Weapon == "" {
			stats.MissingFields["weapon"]++
		}
		if c.Region == "" {
			stats.MissingFields["region"]++
		}
		if len(c.Description) < 50 {
			stats.MissingFields["description"]++
		}
		if !hasJSONValue(c.VoiceActors) {
			stats.MissingFields["voice_actors"]++
		}
	}

	count, err := s.vectorDB.Count()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to count vectors")
	} else {
		stats.TotalVectors = count
	}

	if record, err := s.repo.LatestCrawlRecord(); err == nil {
		stats.LastCrawl = record
	}

	return stats, nil
}

// CharacterID 根据角色名生成角色ID（小写、空格转下划线）
// 与切块ID的前缀使用同一套归一化规则
func CharacterID(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// toCharacterModel 把结构化角色记录转换为数据库模型
func toCharacterModel(info *processor.CharacterInfo) *models.Character {
	return &models.Character{
		ID:             CharacterID(info.Name),
		Name:           info.Name,
		URL:            info.URL,
		Element:        info.Element,
		Weapon:         info.Weapon,
		Rarity:         info.Rarity,
		Region:         info.Region,
		ModelType:      info.ModelType,
		Title:          info.Title,
		RealName:       info.RealName,
		Constellation:  info.Constellation,
		CharacterType:  info.CharacterType,
		RoleSummary:    info.RoleSummary,
		ReleaseDate:    info.ReleaseDate,
		Birthday:       info.Birthday,
		SpecialDish:    info.SpecialDish,
		Namecard:       info.Namecard,
		Description:    info.Description,
		FullText:       info.FullText,
		Affiliations:   mustJSON(info.Affiliations),
		HowToObtain:    mustJSON(info.HowToObtain),
		VoiceActors:    mustJSON(info.VoiceActors),
		EventWishCount: info.EventWishCount,
	}
}

// toChunkModels 把切块转换为数据库模型
func toChunkModels(chunks []processor.Chunk) []*models.CharacterChunk {
	records := make([]*models.CharacterChunk, 0, len(chunks))
	for _, chunk := range chunks {
		records = append(records, &models.CharacterChunk{
			CharacterID: CharacterID(chunk.Character),
			ChunkID:     chunk.ID,
			ChunkType:   string(chunk.ChunkType),
			SectionName: chunk.SectionName,
			Content:     chunk.Content,
			Metadata:    mustJSON(chunk.Metadata),
			VectorID:    chunk.ID,
		})
	}
	return records
}

// mustJSON 序列化为datatypes.JSON，nil值产生JSON null
// 输入都是本包构造的切片和map，序列化不会失败
func mustJSON(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(data)
}

// hasJSONValue 判断JSON列是否携带非空值
func hasJSONValue(data datatypes.JSON) bool {
	trimmed := strings.TrimSpace(string(data))
	switch trimmed {
	case "", "null", "{}", "[]":
		return false
	}
	return true
}

// orUnknown 空字段计入Unknown桶
func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
