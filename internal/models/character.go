package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CrawlStatus 爬取任务状态类型
type CrawlStatus string

const (
	// CrawlStatusPending 爬取任务已创建，等待执行
	CrawlStatusPending CrawlStatus = "pending"
	// CrawlStatusRunning 爬取进行中
	CrawlStatusRunning CrawlStatus = "running"
	// CrawlStatusCompleted 爬取完成
	CrawlStatusCompleted CrawlStatus = "completed"
	// CrawlStatusFailed 爬取失败
	CrawlStatusFailed CrawlStatus = "failed"
)

// Character 角色数据模型
// 存储处理后的结构化角色记录
type Character struct {
	ID             string         `gorm:"primaryKey"`           // 角色ID（小写下划线形式的名称）
	Name           string         `gorm:"not null;uniqueIndex"` // 角色名称
	URL            string         `gorm:"size:255"`             // wiki页面URL
	Element        string         `gorm:"size:20;index"`        // 元素属性
	Weapon         string         `gorm:"size:20;index"`        // 武器类型
	Rarity         int            `gorm:"not null;index"`       // 稀有度（4或5）
	Region         string         `gorm:"size:30;index"`        // 所属地区
	ModelType      string         `gorm:"size:30"`              // 模型体型
	Title          string         `gorm:"size:100"`             // 称号/别名
	RealName       string         `gorm:"size:100"`             // 真实姓名
	Constellation  string         `gorm:"size:100"`             // 命之座
	CharacterType  string         `gorm:"size:30"`              // 角色类型
	RoleSummary    string         `gorm:"size:100"`             // 定位摘要
	ReleaseDate    string         `gorm:"size:50"`              // 上线日期
	Birthday       string         `gorm:"size:50"`              // 生日
	SpecialDish    string         `gorm:"size:100"`             // 特殊料理
	Namecard       string         `gorm:"size:100"`             // 名片
	Description    string         `gorm:"type:text"`            // 合成的背景描述
	FullText       string         `gorm:"type:text"`            // 规范渲染文本
	Affiliations   datatypes.JSON `gorm:"type:json"`            // 所属组织，JSON数组
	HowToObtain    datatypes.JSON `gorm:"type:json"`            // 获取方式，JSON数组
	VoiceActors    datatypes.JSON `gorm:"type:json"`            // 配音演员，JSON对象
	EventWishCount *int           `gorm:""`                     // 限定祈愿次数
	ChunkCount     int            `gorm:"not null;default:0"`   // 切块数量
	CreatedAt      time.Time      `gorm:"not null"`             // 创建时间
	UpdatedAt      time.Time      `gorm:"not null;index"`       // 更新时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (c *Character) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (c *Character) BeforeUpdate(tx *gorm.DB) (err error) {
	c.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Character) TableName() string {
	return "characters"
}

// CharacterChunk 角色切块数据模型
// 跟踪写入向量库的检索切块，可随时由角色记录重新生成
type CharacterChunk struct {
	ID          uint           `gorm:"primaryKey;autoIncrement"` // 主键ID
	CharacterID string         `gorm:"not null;index"`           // 所属角色ID
	ChunkID     string         `gorm:"not null;uniqueIndex"`     // 切块唯一ID
	ChunkType   string         `gorm:"not null;size:20"`         // 切块类型
	SectionName string         `gorm:"size:100"`                 // 章节切块的章节名
	Content     string         `gorm:"type:text;not null"`       // 切块正文
	Metadata    datatypes.JSON `gorm:"type:json"`                // 切块元数据
	VectorID    string         `gorm:"size:50"`                  // 向量数据库中的ID
	CreatedAt   time.Time      `gorm:"not null"`                 // 创建时间
	UpdatedAt   time.Time      `gorm:"not null"`                 // 更新时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (cc *CharacterChunk) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	cc.CreatedAt = now
	cc.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (cc *CharacterChunk) BeforeUpdate(tx *gorm.DB) (err error) {
	cc.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (CharacterChunk) TableName() string {
	return "character_chunks"
}

// CrawlRecord 爬取批次记录
// 每次全量爬取留一条记录，失败列表存JSON方便排查
type CrawlRecord struct {
	ID          uint           `gorm:"primaryKey;autoIncrement"` // 主键ID
	Status      CrawlStatus    `gorm:"not null;size:20;index"`   // 批次状态
	Total       int            `gorm:"not null;default:0"`       // 列表页角色总数
	Succeeded   int            `gorm:"not null;default:0"`       // 成功数量
	Failed      int            `gorm:"not null;default:0"`       // 失败数量
	FailedNames datatypes.JSON `gorm:"type:json"`                // 失败角色名称列表
	SnapshotKey string         `gorm:"size:255"`                 // 原始数据快照的存储位置
	Error       string         `gorm:"type:text"`                // 错误信息
	StartedAt   time.Time      `gorm:"not null"`                 // 开始时间
	EndedAt     *time.Time     `gorm:""`                         // 结束时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置开始时间
func (cr *CrawlRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if cr.StartedAt.IsZero() {
		cr.StartedAt = time.Now()
	}
	return nil
}

// TableName 明确指定表名
func (CrawlRecord) TableName() string {
	return "crawl_records"
}
