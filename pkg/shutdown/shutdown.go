package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/betbot/tradedash/pkg/logger"
)

// Handler 关闭处理函数
type Handler func(ctx context.Context) error

type entry struct {
	name    string
	handler Handler
}

// Manager 优雅关闭管理器
type Manager struct {
	mu      sync.Mutex
	entries []entry
	done    bool
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调。后注册的先执行。
func (m *Manager) OnShutdown(name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{name: name, handler: handler})
}

// Shutdown runs the handlers in reverse order and returns their errors
// joined. A second call does nothing. When ctx expires the remaining
// handlers are skipped.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return nil
	}
	m.done = true
	entries := m.entries
	m.entries = nil
	m.mu.Unlock()

	if len(entries) == 0 {
		logger.Info("没有注册的关闭回调")
		return nil
	}
	logger.Infof("开始优雅关闭，共 %d 个回调", len(entries))

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := ctx.Err(); err != nil {
			logger.Warnf("关闭超时，跳过 %s: %v", e.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
			continue
		}
		if err := e.handler(ctx); err != nil {
			logger.Errorf("关闭 %s 失败: %v", e.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
			continue
		}
		logger.Debugf("%s 已关闭", e.name)
	}
	return errors.Join(errs...)
}
