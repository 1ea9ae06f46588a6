package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check that a file is a valid WebAssembly module",
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

		ok, err := wa.Validate(ctx, data)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], resultStyle.Render("valid"))
			return nil
		}

		// Compile again for the diagnostic; Validate only reports a verdict.
		_, cerr := wa.Compile(ctx, data)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], errorStyle.Render(fmt.Sprintf("invalid: %v", cerr)))
		return fmt.Errorf("%s is not a valid module", args[0])
	},
}
