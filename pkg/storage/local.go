package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage 本地文件系统的快照存储实现
type LocalStorage struct {
	basePath string // 基础存储路径
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 本地存储路径
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	// 确保路径是绝对路径
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %v", err)
	}

	// 确保目录存在
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}

	return &LocalStorage{
		basePath: absPath,
	}, nil
}

// Save 保存快照到本地存储，同名覆盖
func (s *LocalStorage) Save(reader io.Reader, name string) (FileInfo, error) {
	if err := validateName(name); err != nil {
		return FileInfo{}, err
	}

	filePath := filepath.Join(s.basePath, name)

	// 先写临时文件再改名，避免读到写了一半的快照
	tmpFile, err := os.CreateTemp(s.basePath, ".snapshot-*")
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()

	size, err := io.Copy(tmpFile, reader)
	if closeErr := tmpFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return FileInfo{}, fmt.Errorf("failed to write file: %v", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return FileInfo{}, fmt.Errorf("failed to finalize file: %v", err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to stat file: %v", err)
	}

	return FileInfo{
		Name:     name,
		Size:     size,
		Path:     filePath,
		ModTime:  info.ModTime(),
		MimeType: getMimeType(name),
	}, nil
}

// Get 获取快照内容
func (s *LocalStorage) Get(name string) (io.ReadCloser, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.basePath, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot %s not found", name)
		}
		return nil, fmt.Errorf("failed to open file: %v", err)
	}

	return file, nil
}

// Delete 删除快照
func (s *LocalStorage) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.basePath, name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("snapshot %s not found", name)
		}
		return fmt.Errorf("failed to delete file: %v", err)
	}

	return nil
}

// List 列出所有快照
func (s *LocalStorage) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %v", err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// 跳过未完成的临时文件
		if strings.HasPrefix(entry.Name(), ".snapshot-") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, FileInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Path:     filepath.Join(s.basePath, entry.Name()),
			ModTime:  info.ModTime(),
			MimeType: getMimeType(entry.Name()),
		})
	}

	return files, nil
}

// Exists 检查快照是否存在
func (s *LocalStorage) Exists(name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	_, err := os.Stat(filepath.Join(s.basePath, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// validateName 拒绝空名称和路径穿越
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("snapshot name cannot be empty")
	}
	if strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid snapshot name: %s", name)
	}
	return nil
}

// getMimeType 简单根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		return "application/json"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".gz":
		return "application/gzip"
	default:
		return "application/octet-stream"
	}
}
