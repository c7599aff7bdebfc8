package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resume-ats/internal/bootstrap"
	"resume-ats/internal/extract"
	"resume-ats/internal/scoring"
	"resume-ats/internal/shared/config"
	"resume-ats/internal/shared/telemetry"
)

const app = "atscore"

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:          app,
		Short:        "atscore scores a resume against a job description the way an ATS would",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := initConfig(v, cfgFile); err != nil {
				return err
			}
			return initLogger(v)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is atscore.yaml in current directory, if present)")
	root.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	root.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	root.PersistentFlags().String("rules", "", "rules YAML file (default is the embedded rule set)")
	root.PersistentFlags().String("embedding-provider", "hash", "embedding provider: hash or gemini")
	root.PersistentFlags().String("embedding-model", "", "embedding model name")

	for _, name := range []string{"debug", "json", "rules", "embedding-provider", "embedding-model"} {
		_ = v.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}
	_ = v.BindEnv("gemini-api-key", "GEMINI_API_KEY", "ATS_GEMINI_API_KEY")

	root.AddCommand(newAnalyzeCmd(v), newSegmentCmd(v), newVersionCmd())
	return root
}

func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("ATS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	v.SetConfigName(app)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// initLogger keeps stdout for command output.
func initLogger(v *viper.Viper) error {
	l, err := telemetry.NewTo(v.GetBool("json"), v.GetBool("debug"), "stderr")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	telemetry.SetLogger(l)
	return nil
}

// engineConfig maps CLI settings onto the service configuration so the CLI
// scores exactly like the API does.
func engineConfig(v *viper.Viper) config.Config {
	return config.Config{
		RulesFile:          v.GetString("rules"),
		EmbeddingProvider:  v.GetString("embedding-provider"),
		EmbeddingModel:     v.GetString("embedding-model"),
		GeminiAPIKey:       v.GetString("gemini-api-key"),
		EmbeddingCache:     "memory",
		EmbeddingCacheSize: 64,
	}
}

func newEngine(ctx context.Context, v *viper.Viper) (*scoring.Engine, error) {
	engine, _, err := bootstrap.NewEngine(ctx, engineConfig(v), nil)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return engine, nil
}

// readDocument extracts text from a resume or job description file. "-"
// reads plain text from stdin.
func readDocument(ctx context.Context, cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
		name = filepath.Base(path)
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
		name = "stdin.txt"
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	text, err := extract.FromBytes(ctx, data, "", name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return text, nil
}
