package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/hostval"
	"github.com/wippyai/wasm-jsapi/limits"
	"github.com/wippyai/wasm-jsapi/store"
	"github.com/wippyai/wasm-jsapi/wasm"
)

// GoFunc is an untyped host function. When imported it takes the
// signature of the import it satisfies.
type GoFunc = func(ctx context.Context, args []any) ([]any, error)

// importTarget is the wazero module and export an import is rewired to.
type importTarget struct {
	module string
	name   string
}

// pendingTable is a table import waiting for its provider module.
type pendingTable struct {
	proxies map[*store.FunctionRef]string
	slots   []*store.FunctionRef
	limits  limits.Limits
	index   int
}

// linker resolves one module's imports inside an execution context.
type linker struct {
	engine   *Engine
	ec       *ExecutionContext
	module   *Module
	log      *zap.Logger
	host     wazero.HostModuleBuilder
	hostName string
	targets  []importTarget
	values   []any
	tables   []pendingTable
}

func newLinker(e *Engine, ec *ExecutionContext, m *Module) *linker {
	n := len(m.decoded.Imports)
	return &linker{
		engine:   e,
		ec:       ec,
		module:   m,
		log:      e.log.With(zap.String("context", ec.ID())),
		hostName: ec.Name("host"),
		targets:  make([]importTarget, n),
		values:   make([]any, n),
	}
}

func (l *linker) link(ctx context.Context, imports any) (*Instance, error) {
	decoded := l.module.decoded
	compiled := l.module.compiled

	if len(decoded.Imports) > 0 {
		if !hostval.IsObject(imports) {
			return nil, errors.New(errors.PhaseLink, errors.KindTypeError).
				Value(imports).
				Detail("import object is required for a module with %d imports", len(decoded.Imports)).
				Build()
		}
		for i := range decoded.Imports {
			if err := l.resolve(ctx, i, imports); err != nil {
				return nil, err
			}
		}
		var err error
		if compiled, err = l.prepare(ctx); err != nil {
			return nil, err
		}
	}

	cfg := wazero.NewModuleConfig().
		WithName(l.ec.Name("instance")).
		WithStartFunctions()
	mod, err := l.engine.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, errors.LinkError(errors.PhaseLink, "instantiate module", err)
	}
	l.ec.own(mod)

	inst := l.exports(mod)
	l.log.Debug("module instantiated",
		zap.String("instance", mod.Name()),
		zap.Int("imports", len(decoded.Imports)),
		zap.Int("exports", len(inst.names)))
	return inst, nil
}

func (l *linker) resolve(ctx context.Context, i int, imports any) error {
	imp := &l.module.decoded.Imports[i]

	ns, ok := hostval.Member(imports, imp.Module)
	if !ok || !hostval.IsObject(ns) {
		return errors.New(errors.PhaseLink, errors.KindTypeError).
			Value(ns).
			Detail("import %s.%s: module %q is not an object", imp.Module, imp.Name, imp.Module).
			Build()
	}
	v, ok := hostval.Member(ns, imp.Name)
	if !ok {
		return linkError(imp, "not provided", nil)
	}

	var err error
	switch imp.Desc.Kind {
	case wasm.KindFunc:
		err = l.bindFunc(i, imp, v)
	case wasm.KindMemory:
		err = l.bindMemory(ctx, i, imp, v)
	case wasm.KindGlobal:
		err = l.bindGlobal(ctx, i, imp, v)
	case wasm.KindTable:
		err = l.bindTable(i, imp, v)
	default:
		err = linkError(imp, wasm.KindName(imp.Desc.Kind)+" imports are not supported", nil)
	}
	if err != nil {
		return err
	}

	l.values[i] = v
	kind := wasm.KindName(imp.Desc.Kind)
	l.engine.metrics.ImportsResolved.WithLabelValues(kind).Inc()
	l.log.Debug("import bound",
		zap.String("module", imp.Module),
		zap.String("name", imp.Name),
		zap.String("kind", kind),
		zap.String("provider", l.targets[i].module))
	return nil
}

func linkError(imp *wasm.Import, detail string, cause error) error {
	return errors.New(errors.PhaseLink, errors.KindLinkError).
		Cause(cause).
		Detail("import %s.%s: %s", imp.Module, imp.Name, detail).
		Build()
}

func (l *linker) bindFunc(i int, imp *wasm.Import, v any) error {
	types := l.module.decoded.Types
	if int(imp.Desc.TypeIdx) >= len(types) {
		return linkError(imp, fmt.Sprintf("unknown type index %d", imp.Desc.TypeIdx), nil)
	}
	ft := types[imp.Desc.TypeIdx]

	var fn api.GoModuleFunc
	switch f := v.(type) {
	case *store.HostFunc:
		if !f.Type.Equal(ft) {
			return linkError(imp, fmt.Sprintf("signature %s does not match %s", f.Type, ft), nil)
		}
		fn = hostHandler(f)
	case GoFunc:
		fn = hostHandler(&store.HostFunc{Type: ft, Fn: f})
	case *store.FunctionRef:
		if !f.Type.Equal(ft) {
			return linkError(imp, fmt.Sprintf("signature %s does not match %s", f.Type, ft), nil)
		}
		if f.Function() == nil {
			return linkError(imp, "function reference is not callable", nil)
		}
		fn = refHandler(f)
	default:
		return linkError(imp, "function import requires a callable", nil)
	}

	name := fmt.Sprintf("f%d", i)
	l.addHostFunc(name, imp.Module+"."+imp.Name, ft, fn)
	l.targets[i] = importTarget{module: l.hostName, name: name}
	return nil
}

func (l *linker) bindMemory(ctx context.Context, i int, imp *wasm.Import, v any) error {
	mem, ok := v.(*store.Memory)
	if !ok {
		return linkError(imp, "memory import requires a Memory", nil)
	}
	if imp.Desc.Memory.Limits.Shared {
		return linkError(imp, "shared memories are not supported", nil)
	}
	if err := checkLimits(imp.Desc.Memory.Limits, mem.Limits()); err != nil {
		return linkError(imp, "incompatible memory", err)
	}

	src, err := l.engine.memorySource(ctx, mem)
	if err != nil {
		return linkError(imp, "materialize memory", err)
	}
	l.targets[i] = importTarget{module: src.module, name: src.name}
	return nil
}

func (l *linker) bindGlobal(ctx context.Context, i int, imp *wasm.Import, v any) error {
	gt := imp.Desc.Global

	if g, ok := v.(*store.Global); ok {
		if g.Type() != gt.ValType || g.Mutable() != gt.Mutable {
			return linkError(imp, fmt.Sprintf("global %s does not match %s", g, globalTypeString(*gt)), nil)
		}
		src, err := l.engine.globalSource(ctx, g)
		if err != nil {
			return linkError(imp, "materialize global", err)
		}
		l.targets[i] = importTarget{module: src.module, name: src.name}
		return nil
	}

	if gt.Mutable {
		return linkError(imp, "mutable global import requires a Global", nil)
	}
	if !store.IsNumeric(gt.ValType) {
		return linkError(imp, fmt.Sprintf("%s globals cannot be imported from a value", gt.ValType), nil)
	}
	raw, err := store.EncodeValue(gt.ValType, v)
	if err != nil {
		return linkError(imp, "global import requires a number or Global", err)
	}
	name := l.ec.Name(fmt.Sprintf("global%d", i))
	if err := l.instantiateOwned(ctx, name, globalHolder(gt.ValType, false, raw)); err != nil {
		return linkError(imp, "materialize global", err)
	}
	l.targets[i] = importTarget{module: name, name: holderGlobalExport}
	return nil
}

func (l *linker) bindTable(i int, imp *wasm.Import, v any) error {
	t, ok := v.(*store.Table)
	if !ok {
		return linkError(imp, "table import requires a Table", nil)
	}
	if imp.Desc.Table.ElemType != wasm.ValFuncRef {
		return linkError(imp, fmt.Sprintf("%s tables are not supported", imp.Desc.Table.ElemType), nil)
	}
	if err := checkLimits(imp.Desc.Table.Limits, t.Limits()); err != nil {
		return linkError(imp, "incompatible table", err)
	}

	slots := t.Snapshot()
	proxies := make(map[*store.FunctionRef]string)
	for _, ref := range slots {
		if ref == nil {
			continue
		}
		if _, ok := proxies[ref]; ok {
			continue
		}
		if ref.Function() == nil {
			return linkError(imp, fmt.Sprintf("table element %s is not callable", ref), nil)
		}
		name := fmt.Sprintf("t%d.%d", i, len(proxies))
		proxies[ref] = name
		l.addHostFunc(name, ref.String(), ref.Type, refHandler(ref))
	}

	tl := limits.New(uint32(len(slots)))
	if maximum, ok := t.Maximum(); ok {
		tl = limits.WithMax(uint32(len(slots)), maximum)
	}
	l.tables = append(l.tables, pendingTable{index: i, limits: tl, slots: slots, proxies: proxies})
	l.targets[i] = importTarget{module: l.ec.Name(fmt.Sprintf("table%d", i)), name: providerTableName}
	return nil
}

func (l *linker) addHostFunc(export, debugName string, ft wasm.FuncType, fn api.GoModuleFunc) {
	if l.host == nil {
		l.host = l.engine.runtime.NewHostModuleBuilder(l.hostName)
	}
	l.host.NewFunctionBuilder().
		WithGoModuleFunction(fn, apiTypes(ft.Params), apiTypes(ft.Results)).
		WithName(debugName).
		Export(export)
}

// prepare instantiates the host and provider modules, then compiles the
// module with its imports rewired to them.
func (l *linker) prepare(ctx context.Context) (wazero.CompiledModule, error) {
	if l.host != nil {
		mod, err := l.host.Instantiate(ctx)
		if err != nil {
			return nil, errors.LinkError(errors.PhaseLink, "instantiate host functions", err)
		}
		l.ec.own(mod)
	}

	for _, pt := range l.tables {
		bin := tableProvider(l.hostName, pt.limits, pt.slots, pt.proxies)
		if err := l.instantiateOwned(ctx, l.targets[pt.index].module, bin); err != nil {
			return nil, linkError(&l.module.decoded.Imports[pt.index], "build table", err)
		}
	}

	rewritten, err := wasm.RewriteImports(l.module.bytes, func(i int, _, _ string) (string, string) {
		return l.targets[i].module, l.targets[i].name
	})
	if err != nil {
		return nil, errors.LinkError(errors.PhaseLink, "rewrite imports", err)
	}
	compiled, err := l.engine.runtime.CompileModule(ctx, rewritten)
	if err != nil {
		return nil, errors.LinkError(errors.PhaseLink, "compile linked module", err)
	}
	l.ec.ownCompiled(compiled)
	return compiled, nil
}

// instantiateOwned compiles and instantiates a synthesized module whose
// lifetime is bound to the context.
func (l *linker) instantiateOwned(ctx context.Context, name string, bin []byte) error {
	compiled, err := l.engine.runtime.CompileModule(ctx, bin)
	if err != nil {
		return fmt.Errorf("compile %s: %w", name, err)
	}
	l.ec.ownCompiled(compiled)

	cfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
	mod, err := l.engine.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return fmt.Errorf("instantiate %s: %w", name, err)
	}
	l.ec.own(mod)
	return nil
}

func (l *linker) exports(mod api.Module) *Instance {
	d := l.module.decoded
	inst := &Instance{
		module:  l.module,
		ec:      l.ec,
		mod:     mod,
		exports: make(map[string]any, len(d.Exports)),
	}

	memories := make(map[uint32]*store.Memory)
	globals := make(map[uint32]*store.Global)
	for _, exp := range d.Exports {
		v, ok := l.exportValue(mod, exp, memories, globals)
		if !ok {
			l.log.Debug("export not exposed",
				zap.String("name", exp.Name),
				zap.String("kind", wasm.KindName(exp.Kind)))
			continue
		}
		inst.exports[exp.Name] = v
		inst.names = append(inst.names, exp.Name)
	}
	return inst
}

func (l *linker) exportValue(mod api.Module, exp wasm.Export, memories map[uint32]*store.Memory, globals map[uint32]*store.Global) (any, bool) {
	d := l.module.decoded

	// Re-exported host objects keep their identity.
	if i := d.ImportIndex(exp.Kind, exp.Idx); i >= 0 {
		switch v := l.values[i].(type) {
		case *store.FunctionRef, *store.Memory, *store.Global, *store.Table:
			return v, true
		}
	}

	switch exp.Kind {
	case wasm.KindFunc:
		ft, ok := d.FuncTypeAt(exp.Idx)
		fn := mod.ExportedFunction(exp.Name)
		if !ok || fn == nil {
			return nil, false
		}
		return store.NewFunctionRef(exp.Idx, exp.Name, ft, fn), true

	case wasm.KindMemory:
		if m, ok := memories[exp.Idx]; ok {
			return m, true
		}
		em := mod.ExportedMemory(exp.Name)
		if em == nil {
			return nil, false
		}
		m := store.WrapMemory(em)
		memories[exp.Idx] = m
		l.engine.registerSource(m, importSource{module: mod.Name(), name: exp.Name, owner: l.ec.ID()})
		return m, true

	case wasm.KindGlobal:
		if g, ok := globals[exp.Idx]; ok {
			return g, true
		}
		eg := mod.ExportedGlobal(exp.Name)
		if eg == nil {
			return nil, false
		}
		g := store.WrapGlobal(eg)
		globals[exp.Idx] = g
		l.engine.registerSource(g, importSource{module: mod.Name(), name: exp.Name, owner: l.ec.ID()})
		return g, true
	}
	// Defined tables are not exposed: the engine cannot enumerate their elements.
	return nil, false
}

// memorySource returns the module exporting mem, materializing a holder
// the first time an unbound memory is imported.
func (e *Engine) memorySource(ctx context.Context, mem *store.Memory) (importSource, error) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	if src, ok := e.sources[mem]; ok {
		return src, nil
	}
	if mem.Bound() != nil {
		return importSource{}, fmt.Errorf("memory belongs to a closed instance")
	}

	name := "jsapi:memory:" + uuid.NewString()
	mod, err := e.instantiateHolder(ctx, name, memoryHolder(mem.Limits()))
	if err != nil {
		return importSource{}, err
	}
	if err := mem.Bind(mod.ExportedMemory(holderMemoryExport)); err != nil {
		_ = mod.Close(ctx)
		return importSource{}, err
	}
	src := importSource{module: name, name: holderMemoryExport}
	e.sources[mem] = src
	e.log.Debug("memory materialized", zap.String("module", name), zap.Stringer("limits", mem.Limits()))
	return src, nil
}

// globalSource is memorySource for globals.
func (e *Engine) globalSource(ctx context.Context, g *store.Global) (importSource, error) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	if src, ok := e.sources[g]; ok {
		return src, nil
	}
	if g.Bound() != nil {
		return importSource{}, fmt.Errorf("global belongs to a closed instance")
	}

	name := "jsapi:global:" + uuid.NewString()
	mod, err := e.instantiateHolder(ctx, name, globalHolder(g.Type(), g.Mutable(), g.Raw()))
	if err != nil {
		return importSource{}, err
	}
	if err := g.Bind(mod.ExportedGlobal(holderGlobalExport)); err != nil {
		_ = mod.Close(ctx)
		return importSource{}, err
	}
	src := importSource{module: name, name: holderGlobalExport}
	e.sources[g] = src
	e.log.Debug("global materialized", zap.String("module", name), zap.Stringer("global", g))
	return src, nil
}

// instantiateHolder instantiates an engine-owned module that lives until
// the engine closes.
func (e *Engine) instantiateHolder(ctx context.Context, name string, bin []byte) (api.Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	defer compiled.Close(ctx)

	cfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", name, err)
	}
	return mod, nil
}

// checkLimits reports whether a host object with limits have satisfies an
// import declaring want.
func checkLimits(want wasm.Limits, have limits.Limits) error {
	if uint64(have.Initial) < want.Min {
		return fmt.Errorf("size %d is smaller than the required %d", have.Initial, want.Min)
	}
	if want.Max == nil {
		return nil
	}
	maximum, ok := have.Max()
	if !ok {
		return fmt.Errorf("no maximum, required at most %d", *want.Max)
	}
	if uint64(maximum) > *want.Max {
		return fmt.Errorf("maximum %d exceeds the required %d", maximum, *want.Max)
	}
	return nil
}

func globalTypeString(gt wasm.GlobalType) string {
	if gt.Mutable {
		return "mut " + gt.ValType.String()
	}
	return "const " + gt.ValType.String()
}

func hostHandler(h *store.HostFunc) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		if err := h.Invoke(ctx, stack); err != nil {
			panic(err)
		}
	}
}

// refHandler forwards calls to a function exported by another instance.
func refHandler(ref *store.FunctionRef) api.GoModuleFunc {
	fn := ref.Function()
	n := len(ref.Type.Params)
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		results, err := fn.Call(ctx, stack[:n]...)
		if err != nil {
			panic(err)
		}
		copy(stack, results)
	}
}

func apiTypes(types []wasm.ValType) []api.ValueType {
	out := make([]api.ValueType, len(types))
	for i, vt := range types {
		out[i] = api.ValueType(vt)
	}
	return out
}
