package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/errors"
)

var runFlags struct {
	invoke string
}

var runCmd = &cobra.Command{
	Use:   "run FILE [ARGS...]",
	Short: "Instantiate a module and call one of its exported functions",
	Long: `Instantiate a module without imports and call an exported function.

Without --invoke the first of _start, run or main is called, or the only
exported function when there is exactly one. Arguments are parsed according
to the function's parameter types.`,
	Args: cobra.MinimumNArgs(1),
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

		src, err := wa.InstantiateSource(ctx, data, nil)
		if err != nil {
			return describe(err)
		}
		defer src.Instance.Close(ctx)

		funcs := exportedFuncs(src.Module)
		name := runFlags.invoke
		if name == "" {
			if name, err = entryPoint(funcs); err != nil {
				return err
			}
		}
		var target *funcInfo
		for i := range funcs {
			if funcs[i].name == name {
				target = &funcs[i]
			}
		}
		if target == nil {
			return fmt.Errorf("function %q not exported", name)
		}

		callArgs, err := parseArgs(*target, args[1:])
		if err != nil {
			return err
		}
		logger.Debug("invoking export",
			zap.String("function", name),
			zap.String("context", src.Instance.ContextID()))

		results, err := src.Instance.Call(ctx, name, callArgs...)
		if err != nil {
			return describe(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatResults(results))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runFlags.invoke, "invoke", "", "name of the exported function to call")
}

// describe logs the classification of a failure before it is reported.
func describe(err error) error {
	logger.Debug("operation failed",
		zap.String("kind", string(errors.KindOf(err))),
		zap.Error(err))
	return err
}
