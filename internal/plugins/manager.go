// 包 plugins：数据源与展示插件的契约、注册管理与健康检测
package plugins

import (
	"context"
	"slices"
	"sync"
	"time"

	"geodata/internal/logger"
)

// 文档注释：插件健康状态缓存
// 背景：记录健康与最近心跳时间；管理层据此筛选可用数据源。
type status struct {
	healthy bool
	last    time.Time
}

// 文档注释：插件管理器
// 背景：负责数据源与展示插件的注册、按注册顺序列出名称以及数据源心跳。
// 约束：同名插件后注册者覆盖先注册者但保留原有顺序；未实现 Heartbeater 的数据源始终视为健康；线程安全读写。
type Manager struct {
	mu         sync.RWMutex
	sources    map[string]Source
	displays   map[string]Display
	srcOrder   []string
	dispOrder  []string
	st         map[string]status
	hbInterval time.Duration
}

func NewManager() *Manager {
	return &Manager{
		sources:    make(map[string]Source),
		displays:   make(map[string]Display),
		st:         make(map[string]status),
		hbInterval: 30 * time.Second,
	}
}

// RegisterSource：注册数据源插件，默认健康
func (m *Manager) RegisterSource(s Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[s.Name()]; !ok {
		m.srcOrder = append(m.srcOrder, s.Name())
	}
	m.sources[s.Name()] = s
	m.st[s.Name()] = status{healthy: true, last: time.Now()}
	logger.L().Info("plugin_registered", "kind", "source", "name", s.Name())
}

// RegisterDisplay：注册展示插件
func (m *Manager) RegisterDisplay(d Display) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.displays[d.Name()]; !ok {
		m.dispOrder = append(m.dispOrder, d.Name())
	}
	m.displays[d.Name()] = d
	logger.L().Info("plugin_registered", "kind", "display", "name", d.Name())
}

// Source：按名称取健康的数据源
func (m *Manager) Source(name string) (Source, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sources[name]
	if !ok || !m.st[name].healthy {
		return nil, false
	}
	return s, true
}

func (m *Manager) Display(name string) (Display, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.displays[name]
	return d, ok
}

// SourceNames：健康数据源名称，按注册顺序
func (m *Manager) SourceNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.srcOrder))
	for _, n := range m.srcOrder {
		if m.st[n].healthy {
			out = append(out, n)
		}
	}
	return out
}

func (m *Manager) DisplayNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.dispOrder)
}

// 文档注释：启动心跳循环
// 背景：周期性调用数据源 Heartbeat 更新健康状态；在 ctx 取消时停止。
func (m *Manager) Start(ctx context.Context) {
	t := time.NewTicker(m.hbInterval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.doHeartbeat(ctx)
			}
		}
	}()
}

// doHeartbeat：先在读锁下取快照，心跳期间不持锁，避免慢插件阻塞查询
func (m *Manager) doHeartbeat(ctx context.Context) {
	m.mu.RLock()
	hbs := make(map[string]Heartbeater)
	for k, s := range m.sources {
		if h, ok := s.(Heartbeater); ok {
			hbs[k] = h
		}
	}
	m.mu.RUnlock()

	for k, h := range hbs {
		err := h.Heartbeat(ctx)
		m.mu.Lock()
		m.st[k] = status{healthy: err == nil, last: time.Now()}
		m.mu.Unlock()
		if err != nil {
			logger.L().Warn("plugin_heartbeat_fail", "name", k, "err", err)
		} else {
			logger.L().Debug("plugin_heartbeat_ok", "name", k)
		}
	}
}
