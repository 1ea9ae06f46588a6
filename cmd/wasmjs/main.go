package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/engine"
)

type globalFlags struct {
	LogLevel         string
	LogFile          string
	CacheDir         string
	MemoryLimitPages uint32
}

var (
	flags  globalFlags
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "wasmjs",
	Short: "Validate, inspect and run WebAssembly modules",
	Long: `wasmjs drives the wasm-jsapi host embedding from the command line.

Modules are compiled and instantiated through the same API an embedder uses,
so link failures, traps and limit violations are reported with their
TypeError, RangeError or LinkError classification.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(flags.LogLevel, flags.LogFile)
		if err != nil {
			return err
		}
		logger = l
		engine.SetLogger(l)
		wasmjsapi.SetLogger(l.Named("api"))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.LogFile, "log-file", "", "write logs to a rotating file instead of stderr")
	pf.StringVar(&flags.CacheDir, "cache-dir", "", "directory for the compilation cache")
	pf.Uint32Var(&flags.MemoryLimitPages, "memory-limit-pages", 0, "maximum memory per instance in 64KB pages")

	rootCmd.AddCommand(validateCmd, inspectCmd, runCmd, exploreCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// engineConfig builds the engine configuration from the global flags.
func engineConfig() *engine.Config {
	return &engine.Config{
		Logger:           logger,
		CacheDir:         flags.CacheDir,
		MemoryLimitPages: flags.MemoryLimitPages,
	}
}

func newLogger(level, file string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	var (
		enc zapcore.Encoder
		out zapcore.WriteSyncer
	)
	if file != "" {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
		out = zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
		})
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
		out = zapcore.Lock(os.Stderr)
	}
	return zap.New(zapcore.NewCore(enc, out, zap.NewAtomicLevelAt(lvl))), nil
}
