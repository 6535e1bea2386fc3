package repository

import "github.com/yumiao07/genshin-QA-system/internal/models"

// CharacterRepository 角色仓储接口
// 负责结构化角色记录和切块记录的存储与检索
type CharacterRepository interface {
	// Upsert 创建或更新角色记录
	Upsert(character *models.Character) error

	// GetByID 根据ID获取角色
	GetByID(id string) (*models.Character, error)

	// GetByName 根据名称获取角色（大小写不敏感）
	GetByName(name string) (*models.Character, error)

	// List 列出角色列表，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.Character, int64, error)

	// Delete 删除角色及其切块
	Delete(id string) error

	// SaveChunks 批量保存角色切块，同名切块按后写覆盖
	SaveChunks(chunks []*models.CharacterChunk) error

	// GetChunks 获取角色的所有切块
	GetChunks(characterID string) ([]*models.CharacterChunk, error)

	// DeleteChunks 删除角色的所有切块
	DeleteChunks(characterID string) error

	// CountCharacters 统计角色数量
	CountCharacters() (int64, error)

	// CreateCrawlRecord 创建爬取批次记录
	CreateCrawlRecord(record *models.CrawlRecord) error

	// UpdateCrawlRecord 更新爬取批次记录
	UpdateCrawlRecord(record *models.CrawlRecord) error

	// LatestCrawlRecord 获取最近一次爬取批次记录
	LatestCrawlRecord() (*models.CrawlRecord, error)
}
