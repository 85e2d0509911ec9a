// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/glimpse/internal/config"
	"github.com/xkilldash9x/glimpse/internal/observability"
	"github.com/xkilldash9x/glimpse/internal/reasoning"
	"github.com/xkilldash9x/glimpse/internal/store"
)

type contextKey string

const configKey contextKey = "config"

// factories builds the components commands need. Tests replace them with fakes.
type factories struct {
	newRuntime func(ctx context.Context, cfg *config.Config, opts runtimeOptions, logger *zap.Logger) (*runtime, error)
	newClient  func(ctx context.Context, cfg config.ReasoningConfig, logger *zap.Logger) (reasoning.Client, error)
	openStore  func(ctx context.Context, url string, logger *zap.Logger) (runStore, func(), error)
}

func defaultFactories() *factories {
	return &factories{
		newRuntime: buildRuntime,
		newClient:  reasoning.NewClient,
		openStore: func(ctx context.Context, url string, logger *zap.Logger) (runStore, func(), error) {
			s, closeFn, err := store.Connect(ctx, url, logger)
			if err != nil {
				return nil, nil, err
			}
			if err := s.Migrate(ctx); err != nil {
				closeFn()
				return nil, nil, err
			}
			return s, closeFn, nil
		},
	}
}

// Execute builds the command tree and runs it with ctx as the abort signal.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Command execution failed", zap.Error(err))
		}
		return err
	}
	return nil
}

// NewRootCommand returns a fresh command tree. Every call gets its own flags and viper
// instance.
func NewRootCommand() *cobra.Command {
	return newRootCmd(defaultFactories())
}

func newRootCmd(f *factories) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "glimpse",
		Short:         "glimpse drives a screen with a vision model: see, think, act.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "glimpse"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting glimpse", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "glimpse version %s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(f),
		newCheckCmd(f),
		newExamplesCmd(),
		newHistoryCmd(f),
		newVersionCmd(),
	)
	return rootCmd
}

// initializeConfig reads the config file, if any, into v.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if cfgFile == "" && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// configFrom returns the configuration loaded by the root command.
func configFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}
