// 包 catalog：命名数据集注册表与操作编排（加载、变换、地理编码追加、渲染）
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"geodata/internal/dataset"
	"geodata/internal/geocode"
	"geodata/internal/logger"
	"geodata/internal/metrics"
	"geodata/internal/plugins"
)

var (
	ErrEmptyName        = errors.New("dataset name cannot be blank")
	ErrDuplicateName    = errors.New("dataset name already exists")
	ErrDatasetNotFound  = errors.New("dataset not found")
	ErrPluginNotFound   = errors.New("plugin not found")
	ErrMissingSelection = errors.New("missing required selection")
	ErrEmptyLabel       = errors.New("new column label cannot be blank")
)

// 默认渲染窗口
const (
	DisplayWidth  = 600
	DisplayHeight = 450
)

// Listener：数据集生命周期事件订阅者
type Listener interface {
	DatasetCreated(name string)
	DatasetDeleted(name string)
}

// StatsRecorder：可选的批量编码统计落库
type StatsRecorder interface {
	IncrStats(ctx context.Context, lookups, unresolved int) error
}

// 文档注释：数据集目录
// 背景：持有 名称 -> Table 注册表与插件管理器，每个成功的加载/变换/编码操作恰好登记一个新名称并通知订阅者。
// 约束：名称非空且唯一，登记后不可覆盖；“检查名称再插入”通过名称预留保持原子，预留期间同名请求直接失败；
// 订阅者回调在锁外执行，单个订阅者 panic 不影响其他订阅者。
type Catalog struct {
	mu        sync.Mutex
	datasets  map[string]*dataset.Table
	pending   map[string]struct{}
	listeners []Listener

	plugins  *plugins.Manager
	resolver *geocode.Resolver
	stats    StatsRecorder
	log      *slog.Logger
}

type Option func(*Catalog)

func WithStats(s StatsRecorder) Option { return func(c *Catalog) { c.stats = s } }

func WithLogger(l *slog.Logger) Option { return func(c *Catalog) { c.log = l } }

func WithPlugins(m *plugins.Manager) Option { return func(c *Catalog) { c.plugins = m } }

func New(resolver *geocode.Resolver, opts ...Option) *Catalog {
	c := &Catalog{
		datasets: make(map[string]*dataset.Table),
		pending:  make(map[string]struct{}),
		resolver: resolver,
	}
	for _, o := range opts {
		o(c)
	}
	if c.plugins == nil {
		c.plugins = plugins.NewManager()
	}
	c.log = logger.Or(c.log)
	return c
}

// Subscribe：注册订阅者
func (c *Catalog) Subscribe(l Listener) {
	if l == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *Catalog) Plugins() *plugins.Manager { return c.plugins }

// Get：按名称取数据集
func (c *Catalog) Get(name string) (*dataset.Table, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.datasets[name]
	return t, ok
}

// Names：已登记名称（字典序）
func (c *Catalog) Names() []string {
	c.mu.Lock()
	names := make([]string, 0, len(c.datasets))
	for n := range c.datasets {
		names = append(names, n)
	}
	c.mu.Unlock()
	slices.Sort(names)
	return names
}

func (c *Catalog) lookup(name string) (*dataset.Table, error) {
	if t, ok := c.Get(name); ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrDatasetNotFound, name)
}

// reserve：校验并预留名称，成功后必须调用 commit 或 release
func (c *Catalog) reserve(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.datasets[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if _, ok := c.pending[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	c.pending[name] = struct{}{}
	return nil
}

func (c *Catalog) release(name string) {
	c.mu.Lock()
	delete(c.pending, name)
	c.mu.Unlock()
}

func (c *Catalog) commit(name string, t *dataset.Table) {
	c.mu.Lock()
	delete(c.pending, name)
	c.datasets[name] = t
	n := len(c.datasets)
	ls := slices.Clone(c.listeners)
	c.mu.Unlock()

	metrics.DatasetsRegistered.Set(float64(n))
	metrics.DatasetEventsTotal.WithLabelValues("created").Inc()
	c.log.Info("dataset_created", "name", name, "rows", t.RowCount(), "cols", t.ColCount())
	for _, l := range ls {
		c.notify(func() { l.DatasetCreated(name) })
	}
}

func (c *Catalog) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ListenerPanicsTotal.Inc()
			c.log.Error("listener_panic", "err", r)
		}
	}()
	fn()
}

// produce：预留名称 -> 生成 -> 登记；生成失败释放预留
func (c *Catalog) produce(name string, build func() (*dataset.Table, error)) error {
	if err := c.reserve(name); err != nil {
		return err
	}
	t, err := build()
	if err != nil {
		c.release(name)
		return err
	}
	c.commit(name, t)
	return nil
}

// Register：直接登记一个现成的数据集
func (c *Catalog) Register(name string, t *dataset.Table) error {
	if t == nil {
		return errors.New("nil dataset")
	}
	return c.produce(name, func() (*dataset.Table, error) { return t, nil })
}

// Delete：删除数据集；不存在时返回 false 且不发事件
func (c *Catalog) Delete(name string) bool {
	c.mu.Lock()
	if _, ok := c.datasets[name]; !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.datasets, name)
	n := len(c.datasets)
	ls := slices.Clone(c.listeners)
	c.mu.Unlock()

	metrics.DatasetsRegistered.Set(float64(n))
	metrics.DatasetEventsTotal.WithLabelValues("deleted").Inc()
	c.log.Info("dataset_deleted", "name", name)
	for _, l := range ls {
		c.notify(func() { l.DatasetDeleted(name) })
	}
	return true
}
