package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-jsapi/engine"
	"github.com/wippyai/wasm-jsapi/store"
	"github.com/wippyai/wasm-jsapi/wasm"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type funcInfo struct {
	name string
	wit  string
	typ  wasm.FuncType
}

// exportedFuncs lists a module's exported functions sorted by name.
// Functions whose signature has no WIT rendering keep the core form.
func exportedFuncs(m *engine.Module) []funcInfo {
	dec := m.Decoded()
	var funcs []funcInfo
	for _, exp := range dec.Exports {
		if exp.Kind != wasm.KindFunc {
			continue
		}
		ft, ok := dec.FuncTypeAt(exp.Idx)
		if !ok {
			continue
		}
		sig, err := store.WITSignature(ft)
		if err != nil {
			sig = ft.String()
		}
		funcs = append(funcs, funcInfo{name: exp.Name, typ: ft, wit: sig})
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].name < funcs[j].name })
	return funcs
}

// entryPoint picks the function to run when none is named: a conventional
// entry name, or the only export.
func entryPoint(funcs []funcInfo) (string, error) {
	for _, name := range []string{"_start", "run", "main"} {
		for _, f := range funcs {
			if f.name == name {
				return name, nil
			}
		}
	}
	if len(funcs) == 1 {
		return funcs[0].name, nil
	}
	names := make([]string, len(funcs))
	for i, f := range funcs {
		names[i] = f.name
	}
	return "", fmt.Errorf("no entry point, choose one of: %s", strings.Join(names, ", "))
}

// parseArg converts command-line text to the Go scalar for a WIT
// primitive. Unsigned forms are reinterpreted as the signed core type.
func parseArg(value string, t wit.Type) (any, error) {
	value = strings.TrimSpace(value)
	switch t.(type) {
	case wit.S32, wit.U32:
		if v, err := strconv.ParseInt(value, 0, 32); err == nil {
			return int32(v), nil
		}
		v, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid 32-bit integer %q", value)
		}
		return int32(uint32(v)), nil
	case wit.S64, wit.U64:
		if v, err := strconv.ParseInt(value, 0, 64); err == nil {
			return v, nil
		}
		v, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid 64-bit integer %q", value)
		}
		return int64(v), nil
	case wit.F32:
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid f32 %q", value)
		}
		return float32(v), nil
	case wit.F64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid f64 %q", value)
		}
		return v, nil
	case wit.Bool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q", value)
		}
		if v {
			return int32(1), nil
		}
		return int32(0), nil
	default:
		return nil, fmt.Errorf("unsupported argument type %T", t)
	}
}

func parseArgs(f funcInfo, values []string) ([]any, error) {
	if len(values) != len(f.typ.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", f.name, len(f.typ.Params), len(values))
	}
	args := make([]any, len(values))
	for i, s := range values {
		t, ok := store.WITType(f.typ.Params[i])
		if !ok {
			return nil, fmt.Errorf("argument %d: parameters of type %s cannot be passed from the command line", i, f.typ.Params[i])
		}
		v, err := parseArg(s, t)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

func formatResults(results []any) string {
	switch len(results) {
	case 0:
		return "(no results)"
	case 1:
		return fmt.Sprint(results[0])
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprint(r)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
