package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/engine"
)

var inspectFlags struct {
	custom string
	wit    bool
}

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "List a module's imports, exports and custom sections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}

		wa, err := wasmjsapi.New(ctx, engineConfig())
		if err != nil {
			return err
		}
		defer wa.Close(ctx)

		m, err := wa.Compile(ctx, data)
		if err != nil {
			return err
		}
		return inspect(cmd.OutOrStdout(), wa, m, args[0])
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFlags.custom, "custom", "", "dump the custom sections with this name")
	inspectCmd.Flags().BoolVar(&inspectFlags.wit, "wit", false, "show function signatures in WIT syntax")
}

func inspect(w io.Writer, wa *wasmjsapi.WebAssembly, m *engine.Module, filename string) error {
	fmt.Fprintf(w, "%s %s\n\n", titleStyle.Render("Module"), filename)

	imports, err := wa.ModuleImports(m)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s (%d)\n", headerStyle.Render("Imports"), len(imports))
	for _, d := range imports {
		fmt.Fprintf(w, "  %s.%s %s\n", d.Module, funcStyle.Render(d.Name), typeStyle.Render(d.Kind))
	}

	exports, err := wa.ModuleExports(m)
	if err != nil {
		return err
	}
	sigs := make(map[string]funcInfo)
	for _, f := range exportedFuncs(m) {
		sigs[f.name] = f
	}
	fmt.Fprintf(w, "\n%s (%d)\n", headerStyle.Render("Exports"), len(exports))
	for _, d := range exports {
		line := fmt.Sprintf("  %s %s", funcStyle.Render(d.Name), typeStyle.Render(d.Kind))
		if f, ok := sigs[d.Name]; ok {
			sig := f.typ.String()
			if inspectFlags.wit {
				sig = f.wit
			}
			line += " " + sig
		}
		fmt.Fprintln(w, line)
	}

	names := make(map[string]int)
	var order []string
	for _, cs := range m.Decoded().CustomSections {
		if names[cs.Name] == 0 {
			order = append(order, cs.Name)
		}
		names[cs.Name]++
	}
	fmt.Fprintf(w, "\n%s (%d)\n", headerStyle.Render("Custom sections"), len(m.Decoded().CustomSections))
	for _, name := range order {
		fmt.Fprintf(w, "  %s x%d\n", name, names[name])
	}

	if inspectFlags.custom == "" {
		return nil
	}
	sections, err := wa.ModuleCustomSections(m, inspectFlags.custom)
	if err != nil {
		return err
	}
	for i, data := range sections {
		fmt.Fprintf(w, "\n%s %q #%d (%d bytes)\n%s", headerStyle.Render("Section"), inspectFlags.custom, i, len(data), hex.Dump(data))
	}
	return nil
}
