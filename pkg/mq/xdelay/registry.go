package xdelay

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Registry 按注册顺序管理容器，启动按顺序，停止逆序。
type Registry struct {
	sources SourceFactory
	opts    []ContainerOption

	mu         sync.RWMutex
	containers map[string]*Container
	order      []string
}

// NewRegistry 创建注册表。sources 与 opts 用于 RegisterDescriptor 创建的容器，sources 可为 nil。
func NewRegistry(sources SourceFactory, opts ...ContainerOption) *Registry {
	return &Registry{
		sources:    sources,
		opts:       opts,
		containers: make(map[string]*Container),
	}
}

// Register 以 name 注册已创建的容器。
func (r *Registry) Register(name string, c *Container) error {
	if c == nil {
		return fmt.Errorf("%w: nil container %q", ErrInvalidDescriptor, name)
	}
	if name == "" {
		name = c.Name()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.containers[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateContainer, name)
	}
	r.containers[name] = c
	r.order = append(r.order, name)
	return nil
}

// RegisterDescriptor 用注册表的 SourceFactory 创建并注册容器。
func (r *Registry) RegisterDescriptor(desc ContainerDescriptor, binding *HandlerBinding, opts ...ContainerOption) (*Container, error) {
	r.mu.RLock()
	_, dup := r.containers[desc.Name]
	r.mu.RUnlock()
	if dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateContainer, desc.Name)
	}
	all := make([]ContainerOption, 0, len(r.opts)+len(opts))
	all = append(all, r.opts...)
	all = append(all, opts...)
	c, err := NewContainer(desc, binding, r.sources, all...)
	if err != nil {
		return nil, err
	}
	if err := r.Register(desc.Name, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get 按名称查找。
func (r *Registry) Get(name string) (*Container, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.containers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, name)
	}
	return c, nil
}

// Names 按注册顺序返回名称。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Stats 各容器统计，按注册顺序。
func (r *Registry) Stats() []Stats {
	list := r.snapshot()
	out := make([]Stats, 0, len(list))
	for _, c := range list {
		out = append(out, c.Stats())
	}
	return out
}

func (r *Registry) snapshot() []*Container {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*Container, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.containers[name])
	}
	return list
}

// StartAll 按注册顺序启动 AutoStart 的容器。
// 任一启动失败时逆序停止已启动的容器并返回错误。
func (r *Registry) StartAll(ctx context.Context) error {
	var started []*Container
	for _, c := range r.snapshot() {
		if !c.desc.AutoStart {
			continue
		}
		if err := c.Start(ctx); err != nil {
			errs := []error{fmt.Errorf("xdelay: start %s: %w", c.Name(), err)}
			for i := len(started) - 1; i >= 0; i-- {
				if serr := started[i].Stop(ctx); serr != nil {
					errs = append(errs, fmt.Errorf("xdelay: stop %s: %w", started[i].Name(), serr))
				}
			}
			return errors.Join(errs...)
		}
		started = append(started, c)
	}
	return nil
}

// StopAll 逆序停止全部容器，汇总错误。
func (r *Registry) StopAll(ctx context.Context) error {
	list := r.snapshot()
	var errs []error
	for i := len(list) - 1; i >= 0; i-- {
		if err := list[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("xdelay: stop %s: %w", list[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}
