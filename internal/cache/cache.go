package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// 缓存键前缀，按业务域划分
const (
	// PrefixAnswer 问答结果缓存
	PrefixAnswer = "qa:answer"
	// PrefixCharacter 单角色查询缓存
	PrefixCharacter = "qa:character"
	// PrefixCharacterList 角色列表查询缓存
	PrefixCharacterList = "qa:characters"
)

// Cache 缓存接口
type Cache interface {
	Get(key string) (value string, found bool, err error)
	Set(key string, value string, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Factory 缓存工厂函数类型
type Factory func(config Config) (Cache, error)

// 注册的缓存实现
var registry = make(map[string]Factory)

// RegisterCache 注册缓存实现
func RegisterCache(name string, factory Factory) {
	registry[name] = factory
}

// NewCache 创建缓存实例
func NewCache(config Config) (Cache, error) {
	if factory, ok := registry[config.Type]; ok {
		return factory(config)
	}
	// 默认使用内存缓存
	return NewMemoryCache(config)
}

// Config 缓存配置
type Config struct {
	// 缓存类型: "memory", "redis" 等
	Type string
	// Redis连接地址 (仅Redis缓存使用)
	RedisAddr string
	// Redis密码 (仅Redis缓存使用)
	RedisPassword string
	// Redis数据库编号 (仅Redis缓存使用)
	RedisDB int
	// 默认缓存过期时间
	DefaultTTL time.Duration
	// 自动清理间隔时间 (仅内存缓存使用)
	CleanupInterval time.Duration
}

// DefaultConfig 返回默认缓存配置
// 问答结果的时效性不强，默认保留30分钟
func DefaultConfig() Config {
	return Config{
		Type:            "memory",
		DefaultTTL:      time.Minute * 30,
		CleanupInterval: time.Minute * 10,
	}
}

// GenerateCacheKey 生成标准化的缓存键
// 可以基于不同参数生成一致的键
func GenerateCacheKey(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return prefix
	}

	key := prefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// AnswerCacheKey 生成问答结果的缓存键
// 问题文本先做归一化再散列，同一问题带不同角色过滤时键不同
func AnswerCacheKey(question, characterFilter string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	sum := sha256.Sum256([]byte(normalized + "|" + strings.ToLower(characterFilter)))
	return GenerateCacheKey(PrefixAnswer, hex.EncodeToString(sum[:8]))
}

// CharacterCacheKey 生成单角色查询的缓存键
func CharacterCacheKey(name string) string {
	return GenerateCacheKey(PrefixCharacter, strings.ToLower(strings.TrimSpace(name)))
}
