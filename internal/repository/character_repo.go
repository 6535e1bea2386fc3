package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yumiao07/genshin-QA-system/internal/database"
	"github.com/yumiao07/genshin-QA-system/internal/models"
)

// characterRepository 角色仓储实现
type characterRepository struct {
	db  *gorm.DB        // 数据库连接
	ctx context.Context // 上下文，可用于事务或超时控制
}

// NewCharacterRepository 创建角色仓储实例
func NewCharacterRepository() CharacterRepository {
	return &characterRepository{
		db:  database.MustDB(),
		ctx: context.Background(),
	}
}

// NewCharacterRepositoryWithDB 使用指定的数据库连接创建角色仓储实例
func NewCharacterRepositoryWithDB(db *gorm.DB) CharacterRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &characterRepository{
		db:  db,
		ctx: context.Background(),
	}
}

// Upsert 创建或更新角色记录
// 以主键冲突判断，重复写入同一个角色时覆盖全部列
func (r *characterRepository) Upsert(character *models.Character) error {
	if character.ID == "" {
		return errors.New("character ID cannot be empty")
	}
	if character.Name == "" {
		return errors.New("character name cannot be empty")
	}

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(character).Error
}

// GetByID 根据ID获取角色
func (r *characterRepository) GetByID(id string) (*models.Character, error) {
	var character models.Character
	err := r.db.Where("id = ?", id).First(&character).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrCharacterNotFound, id)
		}
		return nil, err
	}
	return &character, nil
}

// GetByName 根据名称获取角色（大小写不敏感）
func (r *characterRepository) GetByName(name string) (*models.Character, error) {
	var character models.Character
	err := r.db.Where("LOWER(name) = ?", strings.ToLower(name)).First(&character).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrCharacterNotFound, name)
		}
		return nil, err
	}
	return &character, nil
}

// List 列出角色列表，支持分页和筛选
// 支持的筛选键：element、weapon、region、rarity、name（模糊匹配）
func (r *characterRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Character, int64, error) {
	var characters []*models.Character
	var total int64

	query := r.db.Model(&models.Character{})

	if filters != nil {
		for _, key := range []string{"element", "weapon", "region"} {
			if value, ok := filters[key].(string); ok && value != "" {
				query = query.Where(fmt.Sprintf("%s = ?", key), value)
			}
		}
		if rarity, ok := filters["rarity"].(int); ok && rarity > 0 {
			query = query.Where("rarity = ?", rarity)
		}
		if name, ok := filters["name"].(string); ok && name != "" {
			query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
		}
	}

	// 先统计总数再分页
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Order("name asc").Find(&characters).Error
	if err != nil {
		return nil, 0, err
	}

	return characters, total, nil
}

// Delete 删除角色及其切块
func (r *characterRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("character_id = ?", id).Delete(&models.CharacterChunk{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Character{}).Error
	})
}

// SaveChunks 批量保存角色切块
// 切块ID冲突时覆盖旧内容，对应重新处理同一角色的场景
func (r *characterRepository) SaveChunks(chunks []*models.CharacterChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, chunk := range chunks {
		if chunk.ChunkID == "" {
			return errors.New("chunk ID cannot be empty")
		}
	}

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chunk_id"}},
		UpdateAll: true,
	}).Create(&chunks).Error
}

// GetChunks 获取角色的所有切块
func (r *characterRepository) GetChunks(characterID string) ([]*models.CharacterChunk, error) {
	var chunks []*models.CharacterChunk
	err := r.db.Where("character_id = ?", characterID).Order("id asc").Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// DeleteChunks 删除角色的所有切块
func (r *characterRepository) DeleteChunks(characterID string) error {
	return r.db.Where("character_id = ?", characterID).Delete(&models.CharacterChunk{}).Error
}

// CountCharacters 统计角色数量
func (r *characterRepository) CountCharacters() (int64, error) {
	var count int64
	err := r.db.Model(&models.Character{}).Count(&count).Error
	return count, err
}

// CreateCrawlRecord 创建爬取批次记录
func (r *characterRepository) CreateCrawlRecord(record *models.CrawlRecord) error {
	return r.db.Create(record).Error
}

// UpdateCrawlRecord 更新爬取批次记录
func (r *characterRepository) UpdateCrawlRecord(record *models.CrawlRecord) error {
	if record.ID == 0 {
		return errors.New("crawl record ID cannot be zero")
	}
	return r.db.Save(record).Error
}

// LatestCrawlRecord 获取最近一次爬取批次记录
func (r *characterRepository) LatestCrawlRecord() (*models.CrawlRecord, error) {
	var record models.CrawlRecord
	err := r.db.Order("started_at desc").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}
