package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 条目过期时间（0 表示不过期）
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`
}

// DefaultRedisConfig 返回默认 Redis 缓存配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
		TTL:      24 * time.Hour,
		PoolSize: 10,
	}
}

// RedisCache 基于 Redis 的外部知识缓存，供多实例共享条目.
type RedisCache struct {
	client *redis.Client
	config RedisConfig
	logger *zap.Logger
}

// NewRedisCache 创建 Redis 缓存并验证连接.
func NewRedisCache(config RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis cache initialized",
		zap.String("addr", config.Addr),
		zap.Duration("ttl", config.TTL),
	)

	return &RedisCache{
		client: client,
		config: config,
		logger: logger.With(zap.String("component", "knowledge_cache")),
	}, nil
}

// Get 获取缓存值，未命中返回 ErrCacheMiss.
func (c *RedisCache) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	if err != nil {
		c.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("cache get failed: %w", err)
	}
	return val, nil
}

// Set 写入缓存值，按配置的 TTL 过期.
func (c *RedisCache) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, key, value, c.config.TTL).Err(); err != nil {
		c.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Close 关闭 Redis 连接.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
