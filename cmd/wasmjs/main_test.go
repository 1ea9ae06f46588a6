package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-jsapi/wasm"
)

func writeModule(t *testing.T, m *wasm.Module) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "module.wasm")
	if err := os.WriteFile(path, m.Encode(), 0o644); err != nil {
		t.Fatalf("write module: %v", err)
	}
	return path
}

// calcModule exports add(i32, i32) -> i32 and run() -> i32 returning 7.
func calcModule() *wasm.Module {
	i32 := wasm.ValI32
	return &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{i32, i32}, Results: []wasm.ValType{i32}},
			{Results: []wasm.ValType{i32}},
		},
		Funcs: []uint32{0, 1},
		Exports: []wasm.Export{
			{Name: "add", Kind: wasm.KindFunc, Idx: 0},
			{Name: "run", Kind: wasm.KindFunc, Idx: 1},
		},
		Code: []wasm.FuncBody{
			{Code: []byte{wasm.OpLocalGet, 0, wasm.OpLocalGet, 1, wasm.OpI32Add, wasm.OpEnd}},
			{Code: []byte{wasm.OpI32Const, 7, wasm.OpEnd}},
		},
		CustomSections: []wasm.CustomSection{{Name: "producers", Data: []byte{0}}},
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		runFlags.invoke = ""
		inspectFlags.custom = ""
		inspectFlags.wit = false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	path := writeModule(t, calcModule())

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{"entry point", []string{"run", path}, "7", false},
		{"invoke", []string{"run", path, "--invoke", "add", "40", "2"}, "42", false},
		{"hex argument", []string{"run", path, "--invoke", "add", "0x10", "1"}, "17", false},
		{"wrong arity", []string{"run", path, "--invoke", "add", "1"}, "", true},
		{"bad argument", []string{"run", path, "--invoke", "add", "x", "1"}, "", true},
		{"missing export", []string{"run", path, "--invoke", "sub"}, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := execute(t, tc.args...)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, output %q", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if strings.TrimSpace(out) != tc.want {
				t.Errorf("output = %q, want %q", out, tc.want)
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	path := writeModule(t, calcModule())
	out, err := execute(t, "validate", path)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "valid") {
		t.Errorf("output = %q", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.wasm")
	if err := os.WriteFile(bad, []byte("\x00asm\x02\x00\x00\x00"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "validate", bad); err == nil {
		t.Error("expected invalid module to fail")
	}
}

func TestInspectCommand(t *testing.T) {
	path := writeModule(t, calcModule())
	out, err := execute(t, "inspect", path, "--wit", "--custom", "producers")
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	for _, want := range []string{"add", "run", "func(p0: s32, p1: s32) -> s32", "producers x1", "(1 bytes)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEntryPoint(t *testing.T) {
	tests := []struct {
		name    string
		funcs   []string
		want    string
		wantErr bool
	}{
		{"start wins", []string{"main", "_start"}, "_start", false},
		{"run before main", []string{"main", "run"}, "run", false},
		{"single export", []string{"compute"}, "compute", false},
		{"ambiguous", []string{"a", "b"}, "", true},
		{"none", nil, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			funcs := make([]funcInfo, len(tc.funcs))
			for i, n := range tc.funcs {
				funcs[i] = funcInfo{name: n}
			}
			got, err := entryPoint(funcs)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v", err)
			}
			if got != tc.want {
				t.Errorf("entryPoint = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		want    any
		typ     wit.Type
		value   string
		wantErr bool
	}{
		{int32(-5), wit.S32{}, "-5", false},
		{int32(-1), wit.S32{}, "4294967295", false},
		{int32(-1), wit.U32{}, "0xffffffff", false},
		{int64(1 << 40), wit.S64{}, "1099511627776", false},
		{float32(1.5), wit.F32{}, "1.5", false},
		{2.25, wit.F64{}, " 2.25 ", false},
		{int32(1), wit.Bool{}, "true", false},
		{nil, wit.S32{}, "4294967296", true},
		{nil, wit.F64{}, "abc", true},
		{nil, wit.String{}, "x", true},
	}
	for _, tc := range tests {
		got, err := parseArg(tc.value, tc.typ)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseArg(%q, %T) err = %v", tc.value, tc.typ, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseArg(%q, %T) = %v (%T), want %v", tc.value, tc.typ, got, got, tc.want)
		}
	}
}

func TestParseArgs(t *testing.T) {
	f := funcInfo{name: "mix", typ: wasm.FuncType{Params: []wasm.ValType{wasm.ValI64, wasm.ValF32}}}
	args, err := parseArgs(f, []string{"-7", "0.5"})
	if err != nil {
		t.Fatalf("parseArgs failed: %v", err)
	}
	if args[0] != int64(-7) || args[1] != float32(0.5) {
		t.Errorf("args = %v", args)
	}

	ref := funcInfo{name: "ref", typ: wasm.FuncType{Params: []wasm.ValType{wasm.ValFuncRef}}}
	if _, err := parseArgs(ref, []string{"0"}); err == nil {
		t.Error("expected funcref parameter to be rejected")
	}
}

func TestFormatResults(t *testing.T) {
	tests := []struct {
		want    string
		results []any
	}{
		{"(no results)", nil},
		{"42", []any{int32(42)}},
		{"(1, 2.5)", []any{int64(1), 2.5}},
	}
	for _, tc := range tests {
		if got := formatResults(tc.results); got != tc.want {
			t.Errorf("formatResults(%v) = %q, want %q", tc.results, got, tc.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("loud", ""); err == nil {
		t.Error("expected invalid level to fail")
	}
	l, err := newLogger("debug", filepath.Join(t.TempDir(), "wasmjs.log"))
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	l.Info("hello")
	_ = l.Sync()
}
