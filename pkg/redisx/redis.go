package redisx

import (
	"context"
	"fmt"
	"strings"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Address          string `json:"address" mapstructure:"address" yaml:"address"`
	Username         string `json:"username" mapstructure:"username" yaml:"username"`
	Password         string `json:"password" mapstructure:"password" yaml:"password"`
	DB               int    `json:"db" mapstructure:"db" yaml:"db"`
	RedisType        string `json:"redisType" mapstructure:"redis-type" yaml:"redis-type"`
	MasterName       string `json:"masterName" mapstructure:"master-name" yaml:"master-name"`
	SentinelUsername string `json:"sentinelUsername" mapstructure:"sentinel-username" yaml:"sentinel-username"`
	SentinelPassword string `json:"sentinelPassword" mapstructure:"sentinel-password" yaml:"sentinel-password"`
}

type Redis redis.Cmdable

// NewRedis 创建redis客户端
func NewRedis(cfg RedisConfig) (Redis, error) {
	var redisClient Redis

	switch cfg.RedisType {
	case "standalone", "":
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})

	case "cluster":
		redisClient = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    strings.Split(cfg.Address, ","),
			Username: cfg.Username,
			Password: cfg.Password,
		})

	case "sentinel":
		redisClient = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       cfg.MasterName,
			SentinelAddrs:    strings.Split(cfg.Address, ","),
			Username:         cfg.Username,
			Password:         cfg.Password,
			DB:               cfg.DB,
			SentinelUsername: cfg.SentinelUsername,
			SentinelPassword: cfg.SentinelPassword,
		})

	case "miniredis":
		// 本地开发、测试使用
		s, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to initial miniredis: %v", err)
		}
		redisClient = redis.NewClient(&redis.Options{
			Addr: s.Addr(),
		})

	default:
		return nil, fmt.Errorf("redis type is illegal: %s", cfg.RedisType)
	}

	err := redisClient.Ping(context.Background()).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %v", err)
	}
	return redisClient, nil
}
