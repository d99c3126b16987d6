package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/getcharzp/go-maskkit/sam"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
)

// Session 一张图片的交互式分割会话
//
// Embedding 和 Scale 创建后只读，可以在多个请求间共享
type Session struct {
	ID        string
	Embedding *sam.Embedding
	Scale     *sam.ModelScale
	CreatedAt time.Time

	mu        sync.Mutex
	lastUsed  time.Time
	lastHover time.Time
	hint      *sam.MaskHint
}

// Hint 上一次预测的低分辨率 Mask
func (s *Session) Hint() *sam.MaskHint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hint
}

// SetHint 保存预测结果供下一轮细化使用，nil 表示清除
func (s *Session) SetHint(h *sam.MaskHint) {
	s.mu.Lock()
	s.hint = h
	s.mu.Unlock()
}

// AllowHover 节流：距离上一次放行不足 interval 时返回 false，被拒绝的消息直接丢弃
func (s *Session) AllowHover(now time.Time, interval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastHover.IsZero() && now.Sub(s.lastHover) < interval {
		return false
	}
	s.lastHover = now
	return true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed)
}

// Sessions 内存中的会话表
type Sessions struct {
	mu    sync.RWMutex
	items map[string]*Session
	idle  time.Duration
	max   int
	now   func() time.Time
}

// NewSessions idle<=0 时不回收，max<=0 时不限数量
func NewSessions(idle time.Duration, max int) *Sessions {
	return &Sessions{
		items: make(map[string]*Session),
		idle:  idle,
		max:   max,
		now:   time.Now,
	}
}

// Create 新建会话
func (s *Sessions) Create(emb *sam.Embedding, scale *sam.ModelScale) (*Session, error) {
	if emb == nil || scale == nil {
		return nil, sam.ErrMissingInput
	}
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Embedding: emb,
		Scale:     scale,
		CreatedAt: now,
		lastUsed:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.max > 0 && len(s.items) >= s.max {
		return nil, ErrTooManySessions
	}
	s.items[sess.ID] = sess
	return sess, nil
}

// Get 获取会话并刷新活跃时间
func (s *Sessions) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

// Delete 删除会话
func (s *Sessions) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.items, id)
	return nil
}

// Len 当前会话数
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Evict 回收空闲超过 idle 的会话，返回回收数量
func (s *Sessions) Evict() int {
	if s.idle <= 0 {
		return 0
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.items {
		if sess.idleSince(now) > s.idle {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// StartJanitor 周期性回收空闲会话，ctx 取消后退出
func (s *Sessions) StartJanitor(ctx context.Context, period time.Duration, onEvict func(evicted, remaining int)) {
	if period <= 0 || s.idle <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n := s.Evict()
				if onEvict != nil {
					onEvict(n, s.Len())
				}
			}
		}
	}()
}
