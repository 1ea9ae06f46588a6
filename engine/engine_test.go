package engine

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/limits"
	"github.com/wippyai/wasm-jsapi/store"
	"github.com/wippyai/wasm-jsapi/wasm"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{CacheDir: t.TempDir()}, "compilation cache"},
		{&Config{Registerer: prometheus.NewRegistry()}, "registered metrics"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, err := New(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if e.Runtime() == nil {
				t.Error("runtime should not be nil")
			}
			if e.Metrics() == nil {
				t.Error("metrics should not be nil")
			}
			if err := e.Close(ctx); err != nil {
				t.Errorf("Close failed: %v", err)
			}
		})
	}
}

func TestEngine_Compile(t *testing.T) {
	e := newTestEngine(t, nil)
	m := mustCompile(t, e, addModule())

	wantExports := []Descriptor{
		{Name: "add", Kind: "function"},
		{Name: "double", Kind: "function"},
	}
	if got := m.Exports(); !reflect.DeepEqual(got, wantExports) {
		t.Errorf("Exports = %+v, want %+v", got, wantExports)
	}
	if got := m.Imports(); len(got) != 0 {
		t.Errorf("Imports = %+v, want none", got)
	}

	sections := m.CustomSections("producers")
	if len(sections) != 2 || string(sections[0]) != "a" || string(sections[1]) != "b" {
		t.Errorf("CustomSections = %q", sections)
	}
	sections[0][0] = 'z'
	if string(m.CustomSections("producers")[0]) != "a" {
		t.Error("CustomSections should return copies")
	}
	if got := m.CustomSections("missing"); len(got) != 0 {
		t.Errorf("CustomSections(missing) = %q", got)
	}
}

func TestEngine_Compile_CopiesInput(t *testing.T) {
	e := newTestEngine(t, nil)
	bin := addModule()
	m := mustCompile(t, e, bin)
	bin[0] = 0xFF
	if !bytes.Equal(m.Bytes(), addModule()) {
		t.Error("module should keep its own copy of the binary")
	}
}

func TestEngine_Compile_Errors(t *testing.T) {
	e := newTestEngine(t, nil)

	tests := []struct {
		name string
		bin  []byte
	}{
		{"empty", nil},
		{"bad magic", []byte{0x00, 0x61, 0x73, 0x00, 0x01, 0x00, 0x00, 0x00}},
		{"truncated", addModule()[:12]},
		// Function section without a code section.
		{"engine rejects", []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00, 0x01, 0x04, 0x01, 0x60, 0x00, 0x00, 0x03, 0x02, 0x01, 0x00}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.Compile(context.Background(), tc.bin)
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.KindOf(err) != errors.KindCompileError {
				t.Errorf("kind = %v, want CompileError: %v", errors.KindOf(err), err)
			}
			if stderrors.Unwrap(err) == nil {
				t.Error("compile error should wrap its cause")
			}
		})
	}
}

func TestEngine_Validate(t *testing.T) {
	e := newTestEngine(t, &Config{Registerer: prometheus.NewRegistry()})
	ctx := context.Background()

	if !e.Validate(ctx, addModule()) {
		t.Error("valid module reported invalid")
	}
	if e.Validate(ctx, []byte("not wasm")) {
		t.Error("garbage reported valid")
	}
	if e.Validate(ctx, nil) {
		t.Error("empty input reported valid")
	}

	if got := testutil.ToFloat64(e.Metrics().Validations.WithLabelValues("true")); got != 1 {
		t.Errorf("valid validations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.Metrics().Validations.WithLabelValues("false")); got != 2 {
		t.Errorf("invalid validations = %v, want 2", got)
	}
}

// validateInputs are byte inputs that must never crash validation.
func validateInputs() map[string][]byte {
	valid := addModule()
	header := valid[:8]
	inputs := map[string][]byte{
		"valid":          valid,
		"memory module":  memoryModule(),
		"empty":          nil,
		"header only":    header,
		"bad version":    {0, 'a', 's', 'm', 2, 0, 0, 0},
		"garbage":        []byte("not wasm"),
		"huge types":     append(append([]byte{}, header...), 0x01, 0x05, 0xFF, 0xFF, 0xFF, 0xFF, 0x0F),
		"huge exports":   append(append([]byte{}, header...), 0x07, 0x05, 0xFF, 0xFF, 0xFF, 0xFF, 0x0F),
		"huge section":   append(append([]byte{}, header...), 0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0x0F),
		"trailing byte":  append(append([]byte{}, valid...), 0x00),
		"truncated tail": valid[:len(valid)-1],
	}
	for _, n := range []int{9, 10, 12, 16, 20} {
		if n < len(valid) {
			inputs[fmt.Sprintf("prefix %d", n)] = valid[:n]
		}
	}
	return inputs
}

func TestEngine_ValidateAgreesWithCompile(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	for name, bin := range validateInputs() {
		t.Run(name, func(t *testing.T) {
			valid := e.Validate(ctx, bin)
			m, err := e.Compile(ctx, bin)
			if err == nil {
				defer m.Close(ctx)
			}
			if valid != (err == nil) {
				t.Errorf("Validate = %v, Compile error = %v", valid, err)
			}
			if err != nil && errors.KindOf(err) != errors.KindCompileError {
				t.Errorf("Compile error kind = %q, want CompileError", errors.KindOf(err))
			}
		})
	}
}

func TestEngine_Instantiate_NoImports(t *testing.T) {
	rec := newRecorder()
	e := newTestEngine(t, &Config{Observer: rec})
	ctx := context.Background()

	inst := mustInstantiate(t, e, addModule(), nil)

	if got := inst.ExportNames(); !reflect.DeepEqual(got, []string{"add", "double"}) {
		t.Errorf("ExportNames = %v", got)
	}
	res, err := inst.Call(ctx, "add", 2, 40)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if len(res) != 1 || res[0] != int32(42) {
		t.Errorf("add(2, 40) = %v", res)
	}

	add, ok := inst.Function("add")
	if !ok {
		t.Fatal("add not exported as function")
	}
	sig, err := store.FormatSignature(add)
	if err != nil || sig != "0(ii)i" {
		t.Errorf("FormatSignature = %q, %v", sig, err)
	}

	if _, err := inst.Call(ctx, "missing"); errors.KindOf(err) != errors.KindTypeError {
		t.Errorf("Call(missing) = %v, want TypeError", err)
	}

	events := rec.only(t)
	if !reflect.DeepEqual(events, []ContextEvent{ContextEntered, ContextLeft}) {
		t.Errorf("events = %v", events)
	}
	if err := inst.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := inst.Close(ctx); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	events = rec.only(t)
	if !reflect.DeepEqual(events, []ContextEvent{ContextEntered, ContextLeft, ContextClosed}) {
		t.Errorf("events after close = %v", events)
	}
}

func TestEngine_Instantiate_Twice(t *testing.T) {
	e := newTestEngine(t, nil)
	m := mustCompile(t, e, addModule())
	ctx := context.Background()

	a, err := e.Instantiate(ctx, m, nil)
	if err != nil {
		t.Fatalf("first Instantiate failed: %v", err)
	}
	b, err := e.Instantiate(ctx, m, nil)
	if err != nil {
		t.Fatalf("second Instantiate failed: %v", err)
	}
	if a.ContextID() == b.ContextID() {
		t.Error("instances should have distinct contexts")
	}
	if a.Module() != m || b.Module() != m {
		t.Error("instances should reference their module")
	}
}

func TestEngine_Instantiate_StartTrap(t *testing.T) {
	rec := newRecorder()
	reg := prometheus.NewRegistry()
	e := newTestEngine(t, &Config{Observer: rec, Registerer: reg})

	m := mustCompile(t, e, trapStartModule())
	_, err := e.Instantiate(context.Background(), m, nil)
	if errors.KindOf(err) != errors.KindLinkError {
		t.Fatalf("err = %v, want LinkError", err)
	}

	events := rec.only(t)
	want := []ContextEvent{ContextEntered, ContextLeft, ContextClosed}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if got := testutil.ToFloat64(e.Metrics().ActiveContexts); got != 0 {
		t.Errorf("active contexts = %v, want 0", got)
	}
	if got := testutil.ToFloat64(e.Metrics().Instantiations.WithLabelValues("error")); got != 1 {
		t.Errorf("failed instantiations = %v, want 1", got)
	}
}

func TestEngine_Instantiate_Arguments(t *testing.T) {
	e := newTestEngine(t, nil)
	other := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := e.Instantiate(ctx, nil, nil); errors.KindOf(err) != errors.KindTypeError {
		t.Errorf("nil module: %v", err)
	}
	foreign := mustCompile(t, other, addModule())
	if _, err := e.Instantiate(ctx, foreign, nil); errors.KindOf(err) != errors.KindLinkError {
		t.Errorf("foreign module: %v", err)
	}
}

func TestEngine_Instantiate_ImportErrors(t *testing.T) {
	e := newTestEngine(t, nil)
	m := mustCompile(t, e, callerModule())
	double := store.NewHostFunc(unaryI32.Params, unaryI32.Results, func(_ context.Context, args []any) ([]any, error) {
		return []any{args[0].(int32) * 2}, nil
	})
	wrongSig := store.NewHostFunc(nil, nil, func(context.Context, []any) ([]any, error) { return nil, nil })

	tests := []struct {
		imports any
		name    string
		kind    errors.Kind
	}{
		{nil, "missing import object", errors.KindTypeError},
		{42, "import object not an object", errors.KindTypeError},
		{map[string]any{}, "missing namespace", errors.KindTypeError},
		{map[string]any{"env": 1}, "namespace not an object", errors.KindTypeError},
		{map[string]any{"env": map[string]any{}}, "missing field", errors.KindLinkError},
		{map[string]any{"env": map[string]any{"double": 1}}, "not callable", errors.KindLinkError},
		{map[string]any{"env": map[string]any{"double": wrongSig}}, "signature mismatch", errors.KindLinkError},
		{map[string]any{"env": map[string]any{"double": double}}, "ok", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := newRecorder()
			e.observer = rec
			defer func() { e.observer = nil }()

			_, err := e.Instantiate(context.Background(), m, tc.imports)
			if got := errors.KindOf(err); got != tc.kind {
				t.Fatalf("kind = %v, want %v: %v", got, tc.kind, err)
			}
			events := rec.only(t)
			if events[0] != ContextEntered || events[1] != ContextLeft {
				t.Errorf("events = %v", events)
			}
		})
	}
}

func TestEngine_HostFunctionImport(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	var seen []any
	double := store.NewHostFunc(unaryI32.Params, unaryI32.Results, func(_ context.Context, args []any) ([]any, error) {
		seen = append(seen, args[0])
		return []any{args[0].(int32) * 2}, nil
	})

	inst := mustInstantiate(t, e, callerModule(), map[string]any{"env": map[string]any{"double": double}})
	res, err := inst.Call(ctx, "run", 21)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res[0] != int32(42) {
		t.Errorf("run(21) = %v", res)
	}
	if len(seen) != 1 || seen[0] != int32(21) {
		t.Errorf("host saw %v", seen)
	}
}

func TestEngine_GoFuncImport(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	fail := false
	fn := func(_ context.Context, args []any) ([]any, error) {
		if fail {
			return nil, stderrors.New("host refused")
		}
		return []any{args[0].(int32) + 1}, nil
	}

	inst := mustInstantiate(t, e, callerModule(), map[string]any{"env": map[string]any{"double": fn}})
	res, err := inst.Call(ctx, "run", 1)
	if err != nil || res[0] != int32(2) {
		t.Fatalf("run(1) = %v, %v", res, err)
	}

	fail = true
	if _, err := inst.Call(ctx, "run", 1); err == nil {
		t.Error("host error should surface from the call")
	}
}

func TestEngine_FunctionRefImport(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	provider := mustInstantiate(t, e, addModule(), nil)
	double, _ := provider.Function("double")
	add, _ := provider.Function("add")

	inst := mustInstantiate(t, e, callerModule(), map[string]any{"env": map[string]any{"double": double}})
	res, err := inst.Call(ctx, "run", 8)
	if err != nil || res[0] != int32(16) {
		t.Fatalf("run(8) = %v, %v", res, err)
	}
	if got, _ := inst.Function("double"); got != double {
		t.Error("re-exported function should keep its identity")
	}

	m := mustCompile(t, e, callerModule())
	_, err = e.Instantiate(ctx, m, map[string]any{"env": map[string]any{"double": add}})
	if errors.KindOf(err) != errors.KindLinkError {
		t.Errorf("mismatched reference: %v", err)
	}
}

func TestEngine_DefinedTableNotExported(t *testing.T) {
	e := newTestEngine(t, nil)
	m := &wasm.Module{
		Tables:  []wasm.TableType{{ElemType: wasm.ValFuncRef, Limits: wasm.Limits{Min: 1}}},
		Exports: []wasm.Export{{Name: "tbl", Kind: wasm.KindTable, Idx: 0}},
	}
	inst := mustInstantiate(t, e, m.Encode(), nil)

	if _, ok := inst.Export("tbl"); ok {
		t.Error("defined table should not be exposed")
	}
	if _, ok := inst.Table("tbl"); ok {
		t.Error("Table reported a defined table")
	}
	if names := inst.ExportNames(); len(names) != 0 {
		t.Errorf("ExportNames = %v", names)
	}
}

func TestEngine_ExportedMemory(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	inst := mustInstantiate(t, e, memoryModule(), nil)
	mem, ok := inst.Memory("mem")
	if !ok {
		t.Fatal("mem not exported")
	}
	if mem.Size() != 1 {
		t.Errorf("Size = %d, want 1", mem.Size())
	}
	if max, ok := mem.Maximum(); !ok || max != 4 {
		t.Errorf("Maximum = %d, %v", max, ok)
	}
	data, err := mem.Read(0, 2)
	if err != nil || string(data) != "hi" {
		t.Errorf("Read = %q, %v", data, err)
	}

	res, err := inst.Call(ctx, "grow", 1)
	if err != nil || res[0] != int32(1) {
		t.Fatalf("grow(1) = %v, %v", res, err)
	}
	if mem.Size() != 2 {
		t.Errorf("growth not visible: Size = %d", mem.Size())
	}

	prev, err := mem.Grow(2)
	if err != nil || prev != 2 {
		t.Fatalf("Grow(2) = %d, %v", prev, err)
	}
	if _, err := mem.Grow(1); errors.KindOf(err) != errors.KindRangeError {
		t.Errorf("Grow past maximum: %v", err)
	}

	// The exported memory can be imported elsewhere.
	user := mustInstantiate(t, e, memoryUserModule(), map[string]any{"env": map[string]any{"mem": mem}})
	res, err = user.Call(ctx, "load8", 1)
	if err != nil || res[0] != int32('i') {
		t.Errorf("load8(1) = %v, %v", res, err)
	}
	if got, _ := user.Memory("mem"); got != mem {
		t.Error("re-exported memory should keep its identity")
	}
}

func TestEngine_HostMemoryImport(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	mem, err := store.NewMemory(limits.WithMax(1, 3))
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	if err := mem.Write(0, []byte("go")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	imports := map[string]any{"env": map[string]any{"mem": mem}}
	a := mustInstantiate(t, e, memoryUserModule(), imports)
	b := mustInstantiate(t, e, memoryUserModule(), imports)

	res, err := a.Call(ctx, "load8", 0)
	if err != nil || res[0] != int32('g') {
		t.Fatalf("load8(0) = %v, %v", res, err)
	}
	if _, err := a.Call(ctx, "store8", 5, 'X'); err != nil {
		t.Fatalf("store8 failed: %v", err)
	}
	res, err = b.Call(ctx, "load8", 5)
	if err != nil || res[0] != int32('X') {
		t.Errorf("memory not shared: load8(5) = %v, %v", res, err)
	}
	data, err := mem.Read(5, 1)
	if err != nil || string(data) != "X" {
		t.Errorf("host Read = %q, %v", data, err)
	}

	if _, err := mem.Grow(1); err != nil {
		t.Fatalf("Grow failed: %v", err)
	}
	if got, _ := a.Memory("mem"); got != mem || got.Size() != 2 {
		t.Error("instance should export the host memory")
	}

	// Closing one importer leaves the shared memory usable.
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	res, err = b.Call(ctx, "load8", 0)
	if err != nil || res[0] != int32('g') {
		t.Errorf("load8 after close = %v, %v", res, err)
	}
}

func TestEngine_MemoryImportLimits(t *testing.T) {
	e := newTestEngine(t, nil)

	tooSmall, err := store.NewMemory(limits.New(0))
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	m := mustCompile(t, e, memoryUserModule())
	_, err = e.Instantiate(context.Background(), m, map[string]any{"env": map[string]any{"mem": tooSmall}})
	if errors.KindOf(err) != errors.KindLinkError {
		t.Errorf("undersized memory: %v", err)
	}

	_, err = e.Instantiate(context.Background(), m, map[string]any{"env": map[string]any{"mem": 1}})
	if errors.KindOf(err) != errors.KindLinkError {
		t.Errorf("non-memory: %v", err)
	}
}

func TestEngine_GlobalImport(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	t.Run("number for immutable", func(t *testing.T) {
		inst := mustInstantiate(t, e, globalUserModule(false), map[string]any{"env": map[string]any{"g": 7}})
		res, err := inst.Call(ctx, "get")
		if err != nil || res[0] != int32(7) {
			t.Errorf("get() = %v, %v", res, err)
		}
		g, ok := inst.Global("g")
		if !ok || g.Value() != int32(7) || g.Mutable() {
			t.Errorf("exported global = %v", g)
		}
	})

	t.Run("number for mutable", func(t *testing.T) {
		m := mustCompile(t, e, globalUserModule(true))
		_, err := e.Instantiate(ctx, m, map[string]any{"env": map[string]any{"g": 7}})
		if errors.KindOf(err) != errors.KindLinkError {
			t.Errorf("err = %v, want LinkError", err)
		}
	})

	t.Run("mismatched global", func(t *testing.T) {
		g, err := store.NewGlobal("i64", true, 1)
		if err != nil {
			t.Fatalf("NewGlobal failed: %v", err)
		}
		m := mustCompile(t, e, globalUserModule(true))
		_, err = e.Instantiate(ctx, m, map[string]any{"env": map[string]any{"g": g}})
		if errors.KindOf(err) != errors.KindLinkError {
			t.Errorf("err = %v, want LinkError", err)
		}
	})

	t.Run("shared mutable global", func(t *testing.T) {
		g, err := store.NewGlobal("i32", true, 1)
		if err != nil {
			t.Fatalf("NewGlobal failed: %v", err)
		}
		imports := map[string]any{"env": map[string]any{"g": g}}
		a := mustInstantiate(t, e, globalUserModule(true), imports)
		b := mustInstantiate(t, e, globalUserModule(true), imports)

		if _, err := a.Call(ctx, "set", 5); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if g.Value() != int32(5) {
			t.Errorf("host sees %v, want 5", g.Value())
		}
		if err := g.Set(9); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		res, err := b.Call(ctx, "get")
		if err != nil || res[0] != int32(9) {
			t.Errorf("get() = %v, %v", res, err)
		}
		if got, _ := a.Global("g"); got != g {
			t.Error("re-exported global should keep its identity")
		}
	})
}

func TestEngine_TableImport(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	provider := mustInstantiate(t, e, addModule(), nil)
	double, _ := provider.Function("double")

	tbl, err := store.AllocTable(limits.New(2))
	if err != nil {
		t.Fatalf("AllocTable failed: %v", err)
	}
	if err := tbl.Set(1, double); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	inst := mustInstantiate(t, e, tableUserModule(), map[string]any{"env": map[string]any{"tbl": tbl}})
	res, err := inst.Call(ctx, "call", 21, 1)
	if err != nil || res[0] != int32(42) {
		t.Fatalf("call(21, 1) = %v, %v", res, err)
	}
	if _, err := inst.Call(ctx, "call", 21, 0); err == nil {
		t.Error("calling an empty slot should trap")
	}
	if got, _ := inst.Table("tbl"); got != tbl {
		t.Error("re-exported table should keep its identity")
	}

	t.Run("snapshot at link time", func(t *testing.T) {
		if err := tbl.Set(0, double); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if _, err := inst.Call(ctx, "call", 21, 0); err == nil {
			t.Error("host write after linking should not reach the instance")
		}

		relinked := mustInstantiate(t, e, tableUserModule(), map[string]any{"env": map[string]any{"tbl": tbl}})
		res, err := relinked.Call(ctx, "call", 21, 0)
		if err != nil || res[0] != int32(42) {
			t.Errorf("relinked call(21, 0) = %v, %v", res, err)
		}
	})

	t.Run("too small", func(t *testing.T) {
		small, _ := store.AllocTable(limits.New(1))
		m := mustCompile(t, e, tableUserModule())
		_, err := e.Instantiate(ctx, m, map[string]any{"env": map[string]any{"tbl": small}})
		if errors.KindOf(err) != errors.KindLinkError {
			t.Errorf("err = %v, want LinkError", err)
		}
	})

	t.Run("uncallable element", func(t *testing.T) {
		bad, _ := store.AllocTable(limits.New(2))
		_ = bad.Set(0, store.NewFunctionRef(0, "ghost", unaryI32, nil))
		m := mustCompile(t, e, tableUserModule())
		_, err := e.Instantiate(ctx, m, map[string]any{"env": map[string]any{"tbl": bad}})
		if errors.KindOf(err) != errors.KindLinkError {
			t.Errorf("err = %v, want LinkError", err)
		}
	})
}

func TestEngine_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newTestEngine(t, &Config{Registerer: reg})
	ctx := context.Background()

	double := store.NewHostFunc(unaryI32.Params, unaryI32.Results, func(_ context.Context, args []any) ([]any, error) {
		return args, nil
	})
	mustInstantiate(t, e, callerModule(), map[string]any{"env": map[string]any{"double": double}})
	if _, err := e.Compile(ctx, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected compile error")
	}

	m := e.Metrics()
	if got := testutil.ToFloat64(m.Compilations.WithLabelValues("ok")); got != 1 {
		t.Errorf("successful compilations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Compilations.WithLabelValues("error")); got != 1 {
		t.Errorf("failed compilations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Instantiations.WithLabelValues("ok")); got != 1 {
		t.Errorf("instantiations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ImportsResolved.WithLabelValues("function")); got != 1 {
		t.Errorf("function imports = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ActiveContexts); got != 0 {
		t.Errorf("active contexts = %v, want 0", got)
	}
	if n, err := testutil.GatherAndCount(reg, "wasmjsapi_engine_compile_duration_seconds"); err != nil || n != 1 {
		t.Errorf("compile duration series = %d, %v", n, err)
	}
}

func TestContextEvent_String(t *testing.T) {
	tests := []struct {
		want  string
		event ContextEvent
	}{
		{"entered", ContextEntered},
		{"left", ContextLeft},
		{"closed", ContextClosed},
		{"unknown", ContextEvent(42)},
	}
	for _, tc := range tests {
		if got := tc.event.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", tc.event, got, tc.want)
		}
	}
}

func TestExecutionContext_LeaveWithoutEnter(t *testing.T) {
	rec := newRecorder()
	e := newTestEngine(t, &Config{Observer: rec})
	ec := e.newContext()

	ec.Leave()
	ec.Enter()
	ec.Leave()
	ec.Leave()

	events := rec.only(t)
	if !reflect.DeepEqual(events, []ContextEvent{ContextEntered, ContextLeft}) {
		t.Errorf("events = %v", events)
	}
	if name := ec.Name("host"); name != ec.ID()+":host" {
		t.Errorf("Name = %q", name)
	}
}
