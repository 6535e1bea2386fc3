package storage

import (
	"fmt"
	"io"
	"time"
)

const (
	// LatestSnapshotName 最新一次爬取快照的固定文件名
	LatestSnapshotName = "characters_latest.json"
)

// SnapshotName 按日期生成快照文件名
func SnapshotName(t time.Time) string {
	return fmt.Sprintf("characters_full_%s.json", t.Format("20060102"))
}

// FileInfo 快照文件元数据结构
type FileInfo struct {
	Name     string // 快照文件名，作为唯一键
	Size     int64  // 文件大小(字节)
	Path     string // 内部存储路径(实现相关)
	ModTime  time.Time
	MimeType string // 文件MIME类型(可选)
}

// Storage 快照存储接口
// 按文件名存取爬取快照，可以有不同实现(本地文件系统、MinIO等)
// 同名保存视为覆盖
type Storage interface {
	// Save 保存快照并返回文件信息
	Save(reader io.Reader, name string) (FileInfo, error)

	// Get 获取快照内容
	Get(name string) (io.ReadCloser, error)

	// Delete 删除快照
	Delete(name string) error

	// List 列出所有快照
	List() ([]FileInfo, error)

	// Exists 检查快照是否存在
	Exists(name string) (bool, error)
}

// Factory 存储实现的工厂函数
// 用于根据配置创建不同类型的存储实现
type Factory func(cfg interface{}) (Storage, error)
