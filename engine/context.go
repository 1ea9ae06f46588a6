package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// ContextEvent is a lifecycle transition of an ExecutionContext.
type ContextEvent int

const (
	ContextEntered ContextEvent = iota
	ContextLeft
	ContextClosed
)

func (e ContextEvent) String() string {
	switch e {
	case ContextEntered:
		return "entered"
	case ContextLeft:
		return "left"
	case ContextClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ContextObserver is notified of execution context lifecycle events.
type ContextObserver interface {
	ContextEvent(id string, event ContextEvent)
}

// ContextObserverFunc adapts a function to ContextObserver.
type ContextObserverFunc func(id string, event ContextEvent)

// ContextEvent calls f(id, event).
func (f ContextObserverFunc) ContextEvent(id string, event ContextEvent) {
	f(id, event)
}

// ExecutionContext scopes one instantiation. It owns the modules created
// to link it, which live as long as the resulting instance.
type ExecutionContext struct {
	engine   *Engine
	id       string
	modules  []api.Module
	compiled []wazero.CompiledModule
	mu       sync.Mutex
	entered  bool
	closed   bool
}

func (e *Engine) newContext() *ExecutionContext {
	return &ExecutionContext{engine: e, id: uuid.NewString()}
}

// ID returns the context's unique identifier.
func (c *ExecutionContext) ID() string {
	return c.id
}

// Name returns a module name scoped to this context.
func (c *ExecutionContext) Name(suffix string) string {
	return c.id + ":" + suffix
}

// Enter marks the context active. It pairs with exactly one Leave.
func (c *ExecutionContext) Enter() {
	c.mu.Lock()
	c.entered = true
	c.mu.Unlock()

	c.engine.metrics.ActiveContexts.Inc()
	c.engine.log.Debug("execution context entered", zap.String("context", c.id))
	c.notify(ContextEntered)
}

// Leave marks the context inactive. Calls without a matching Enter are
// ignored.
func (c *ExecutionContext) Leave() {
	c.mu.Lock()
	if !c.entered {
		c.mu.Unlock()
		return
	}
	c.entered = false
	c.mu.Unlock()

	c.engine.metrics.ActiveContexts.Dec()
	c.engine.log.Debug("execution context left", zap.String("context", c.id))
	c.notify(ContextLeft)
}

func (c *ExecutionContext) notify(event ContextEvent) {
	if obs := c.engine.observer; obs != nil {
		obs.ContextEvent(c.id, event)
	}
}

// own registers a module for release when the context closes.
func (c *ExecutionContext) own(mod api.Module) {
	c.mu.Lock()
	c.modules = append(c.modules, mod)
	c.mu.Unlock()
}

func (c *ExecutionContext) ownCompiled(cm wazero.CompiledModule) {
	c.mu.Lock()
	c.compiled = append(c.compiled, cm)
	c.mu.Unlock()
}

// Close releases every module the context created, most recent first.
// Closing twice is a no-op.
func (c *ExecutionContext) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	modules, compiled := c.modules, c.compiled
	c.modules, c.compiled = nil, nil
	c.mu.Unlock()

	var firstErr error
	for i := len(modules) - 1; i >= 0; i-- {
		if err := modules[i].Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, cm := range compiled {
		if err := cm.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.engine.releaseSources(c.id)
	c.engine.log.Debug("execution context closed",
		zap.String("context", c.id),
		zap.Int("modules", len(modules)))
	c.notify(ContextClosed)
	return firstErr
}
