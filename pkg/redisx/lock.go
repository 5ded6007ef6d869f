package redisx

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/xiehqing/streamcore/pkg/logs"
	"golang.org/x/net/context"
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client        Redis
	key           string
	value         string
	expiration    time.Duration
	maxRetryCount int           // 最大重试次数
	retryInterval time.Duration // 重试间隔
}

// LockOptions 锁配置选项
type LockOptions struct {
	Key           string        // 锁的key
	Value         string        // 锁的value（用于标识锁持有者，为空则自动生成UUID）
	Expiration    time.Duration // 锁过期时间，默认30秒
	MaxRetryCount int           // 获取锁的最大重试次数，默认3次
	RetryInterval time.Duration // 重试间隔，默认100ms
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client Redis, opts LockOptions) *DistributedLock {
	if opts.Key == "" {
		opts.Key = "distributed_lock:" + uuid.New().String()
	}
	if opts.Value == "" {
		opts.Value = uuid.New().String()
	}
	if opts.Expiration == 0 {
		opts.Expiration = 30 * time.Second
	}
	if opts.MaxRetryCount == 0 {
		opts.MaxRetryCount = 3
	}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = 100 * time.Millisecond
	}

	return &DistributedLock{
		client:        client,
		key:           opts.Key,
		value:         opts.Value,
		expiration:    opts.Expiration,
		maxRetryCount: opts.MaxRetryCount,
		retryInterval: opts.RetryInterval,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	result, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, errors.WithMessagef(err, "获取锁失败")
	}
	return result, nil
}

// Lock 阻塞式获取锁，带重试机制
func (l *DistributedLock) Lock(ctx context.Context) error {
	for i := 0; i < l.maxRetryCount; i++ {
		acquired, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}
		if i == l.maxRetryCount-1 {
			break
		}
		select {
		case <-ctx.Done():
			return errors.New("获取锁被取消")
		case <-time.After(l.retryInterval):
			continue
		}
	}
	return errors.Errorf("获取锁失败，已重试 %d 次", l.maxRetryCount)
}

// LockWithTimeout 带超时的阻塞式获取锁
func (l *DistributedLock) LockWithTimeout(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		acquired, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.New("获取锁超时或被取消")
		case <-ticker.C:
			continue
		}
	}
}

// Unlock 释放锁（使用Lua脚本保证原子性，只能释放自己持有的锁）
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`

	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	if err != nil {
		return errors.WithMessagef(err, "释放锁失败")
	}
	if result == int64(0) {
		return errors.New("释放锁失败：锁不存在或已被其他持有者占用")
	}
	return nil
}

// ExecuteWithLock 在锁保护下执行函数
func (l *DistributedLock) ExecuteWithLock(ctx context.Context, fn func() error) error {
	if err := l.Lock(ctx); err != nil {
		return errors.WithMessage(err, "获取锁失败")
	}
	defer func() {
		if err := l.Unlock(ctx); err != nil {
			// 记录错误但不影响函数执行结果
			logs.Errorf("释放锁失败: %v", err)
		}
	}()
	return fn()
}
