// pkg/dedup/dedup.go
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"TradeScout/pkg/model"
)

// Key 计算交易动作的去重键
// 同一发送者在同一时间窗口内对同一标的的同一动作视为一个事实：
// 专家在窗口内重复喊单是一次喊单，不是N次
func Key(sender, symbol string, action model.ActionType, sentAt time.Time, window time.Duration) string {
	bucket := sentAt.UTC().Truncate(window)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d", sender, strings.ToUpper(symbol), action, bucket.Unix())
	return hex.EncodeToString(h.Sum(nil))
}

// KeyStore 去重键存储
// InsertIfAbsent 必须是单个原子操作（检查+插入），并发提交同一个键时只有一个成功，
// 持久化实现保证该约束在进程重启后依然成立
type KeyStore interface {
	// InsertIfAbsent 尝试登记键，返回是否插入成功；键已存在时返回占有它的动作ID
	InsertIfAbsent(ctx context.Context, key, actionID string) (existingID string, inserted bool, err error)
}

// MemoryKeyStore 内存去重键存储（测试和单机试运行用）
type MemoryKeyStore struct {
	mu   sync.Mutex
	keys map[string]string
}

// NewMemoryKeyStore 创建内存去重键存储
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]string)}
}

// InsertIfAbsent 实现 KeyStore
func (s *MemoryKeyStore) InsertIfAbsent(ctx context.Context, key, actionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.keys[key]; ok {
		return existing, false, nil
	}
	s.keys[key] = actionID
	return "", true, nil
}
