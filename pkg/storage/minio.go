package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage MinIO快照存储实现
// 对象名即快照文件名
type MinioStorage struct {
	client     *minio.Client // MinIO客户端
	bucketName string        // 存储桶名称
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string // MinIO服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
}

// NewMinioStorage 创建MinIO存储实例
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	// 创建MinIO客户端
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	// 检查存储桶是否存在，不存在则创建
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %v", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %v", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// Save 保存快照到MinIO，同名覆盖
func (s *MinioStorage) Save(reader io.Reader, name string) (FileInfo, error) {
	if err := validateName(name); err != nil {
		return FileInfo{}, err
	}

	// 读取快照内容到内存以获取大小
	// 快照是字符级JSON，体量可控
	content, err := io.ReadAll(reader)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to read file content: %v", err)
	}

	size := int64(len(content))
	contentType := getMimeType(name)

	_, err = s.client.PutObject(
		context.Background(),
		s.bucketName,
		name,
		bytes.NewReader(content),
		size,
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload file: %v", err)
	}

	// 返回文件信息
	return FileInfo{
		Name:     name,
		Size:     size,
		MimeType: contentType,
		Path:     name,
	}, nil
}

// Get 获取MinIO中的快照
func (s *MinioStorage) Get(name string) (io.ReadCloser, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	// 先确认对象存在，GetObject本身是惰性的
	_, err := s.client.StatObject(
		context.Background(),
		s.bucketName,
		name,
		minio.StatObjectOptions{},
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s not found: %v", name, err)
	}

	obj, err := s.client.GetObject(
		context.Background(),
		s.bucketName,
		name,
		minio.GetObjectOptions{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %v", err)
	}

	return obj, nil
}

// Delete 从MinIO中删除快照
func (s *MinioStorage) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	exists, err := s.Exists(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("snapshot %s not found", name)
	}

	err = s.client.RemoveObject(
		context.Background(),
		s.bucketName,
		name,
		minio.RemoveObjectOptions{},
	)
	if err != nil {
		return fmt.Errorf("failed to delete object: %v", err)
	}

	return nil
}

// List 列出MinIO中的所有快照
func (s *MinioStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	// 创建一个通道接收MinIO对象
	objectCh := s.client.ListObjects(
		context.Background(),
		s.bucketName,
		minio.ListObjectsOptions{Recursive: true},
	)

	// 遍历所有对象
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %v", object.Err)
		}

		// 跳过嵌套路径下的对象，快照都存在桶根目录
		if strings.Contains(object.Key, "/") {
			continue
		}

		files = append(files, FileInfo{
			Name:     object.Key,
			Size:     object.Size,
			MimeType: getMimeType(object.Key),
			Path:     object.Key,
			ModTime:  object.LastModified,
		})
	}

	return files, nil
}

// Exists 检查MinIO中是否存在指定快照
func (s *MinioStorage) Exists(name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	_, err := s.client.StatObject(
		context.Background(),
		s.bucketName,
		name,
		minio.StatObjectOptions{},
	)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %v", err)
	}

	return true, nil
}
