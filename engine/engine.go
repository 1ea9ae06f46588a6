package engine

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/wasm"
)

// Engine compiles and instantiates modules on a shared wazero runtime.
// It is safe for concurrent use.
type Engine struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	log      *zap.Logger
	metrics  *Metrics
	observer ContextObserver
	sources  map[any]importSource
	// sourcesMu also serializes materializing host memories and globals
	sourcesMu sync.Mutex
}

// importSource names the wazero module and export that provide a bound
// memory or global. owner is the context that created the module, or empty
// for engine-owned holders.
type importSource struct {
	module string
	name   string
	owner  string
}

// New creates an engine. A nil cfg uses defaults.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	var cache wazero.CompilationCache
	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.CacheDir != "" {
			c, err := wazero.NewCompilationCacheWithDir(cfg.CacheDir)
			if err != nil {
				return nil, fmt.Errorf("compilation cache %s: %w", cfg.CacheDir, err)
			}
			cache = c
			runtimeCfg = runtimeCfg.WithCompilationCache(cache)
		}
	}

	e := &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		cache:   cache,
		log:     cfg.logger(),
		sources: make(map[any]importSource),
	}
	if cfg != nil {
		e.observer = cfg.Observer
		e.metrics = newMetrics(cfg.Registerer)
	} else {
		e.metrics = newMetrics(nil)
	}
	return e, nil
}

// Runtime returns the underlying wazero runtime.
func (e *Engine) Runtime() wazero.Runtime {
	return e.runtime
}

// Metrics returns the engine's collectors.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Compile decodes and compiles a module. Malformed or invalid bytes yield
// a CompileError wrapping the decoder or engine error.
func (e *Engine) Compile(ctx context.Context, bin []byte) (*Module, error) {
	start := time.Now()
	m, err := e.compile(ctx, bin)
	e.metrics.CompileDuration.Observe(time.Since(start).Seconds())
	e.metrics.Compilations.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		e.log.Debug("compile failed", zap.Int("bytes", len(bin)), zap.Error(err))
		return nil, err
	}
	e.log.Debug("module compiled",
		zap.Int("bytes", len(bin)),
		zap.Int("imports", len(m.decoded.Imports)),
		zap.Int("exports", len(m.decoded.Exports)))
	return m, nil
}

func (e *Engine) compile(ctx context.Context, bin []byte) (*Module, error) {
	decoded, err := wasm.ParseModule(bin)
	if err != nil {
		return nil, errors.CompileError(err)
	}
	compiled, err := e.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.CompileError(err)
	}
	return &Module{
		engine:   e,
		bytes:    append([]byte(nil), bin...),
		decoded:  decoded,
		compiled: compiled,
	}, nil
}

// Validate reports whether Compile would succeed. It never fails.
func (e *Engine) Validate(ctx context.Context, bin []byte) bool {
	m, err := e.compile(ctx, bin)
	valid := err == nil
	e.metrics.Validations.WithLabelValues(strconv.FormatBool(valid)).Inc()
	if !valid {
		e.log.Debug("module invalid", zap.Error(err))
		return false
	}
	if cerr := m.Close(ctx); cerr != nil {
		e.log.Warn("release validated module", zap.Error(cerr))
	}
	return true
}

// Instantiate links m against imports inside a fresh ExecutionContext.
// The context is left exactly once whether linking succeeds or fails; on
// failure every module created for it is closed.
func (e *Engine) Instantiate(ctx context.Context, m *Module, imports any) (inst *Instance, err error) {
	if m == nil {
		return nil, errors.TypeError(errors.PhaseLink, "module is required")
	}
	if m.engine != e {
		return nil, errors.LinkError(errors.PhaseLink, "module was compiled by a different engine", nil)
	}

	ec := e.newContext()
	defer func() {
		e.metrics.Instantiations.WithLabelValues(resultLabel(err)).Inc()
		if err == nil {
			return
		}
		e.log.Debug("instantiate failed", zap.String("context", ec.ID()), zap.Error(err))
		if cerr := ec.Close(ctx); cerr != nil {
			e.log.Warn("release failed context", zap.String("context", ec.ID()), zap.Error(cerr))
		}
	}()

	ec.Enter()
	defer ec.Leave()

	l := newLinker(e, ec, m)
	return l.link(ctx, imports)
}

// Close closes the runtime and every module in it.
func (e *Engine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if e.cache != nil {
		if cerr := e.cache.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (e *Engine) lookupSource(key any) (importSource, bool) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()
	src, ok := e.sources[key]
	return src, ok
}

func (e *Engine) registerSource(key any, src importSource) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()
	e.sources[key] = src
}

// releaseSources forgets every source provided by modules of owner.
func (e *Engine) releaseSources(owner string) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()
	for key, src := range e.sources {
		if src.owner == owner {
			delete(e.sources, key)
		}
	}
}
