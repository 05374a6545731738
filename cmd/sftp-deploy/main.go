package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/darshan-rambhia/sftpdeploy"
	"github.com/darshan-rambhia/sftpdeploy/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	logger  *zap.Logger
	rootCmd = &cobra.Command{
		Use:           "sftp-deploy [flags]",
		Short:         "Upload the files listed in a deploy file to an SFTP server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := viper.GetString("config")
			dryRun := viper.GetBool("dry")
			ignoreFile := viper.GetString("ignore-file")

			cfg, err := sftpdeploy.LoadConfig(configPath)
			if err != nil {
				return err
			}

			if ignoreFile == "" {
				ignoreFile = filepath.Join(cfg.LocalRoot, sftpdeploy.DefaultIgnoreFile)
			}
			matcher, err := sftpdeploy.LoadIgnoreFile(ignoreFile)
			if err != nil {
				return fmt.Errorf("read ignore file %s: %w", ignoreFile, err)
			}

			retry := sftpdeploy.DefaultRetryConfig()
			retry.MaxRetries = viper.GetInt("connect-retries")

			return sftpdeploy.Deploy(cmd.Context(), cfg,
				sftpdeploy.WithLogger(logger),
				sftpdeploy.WithDryRun(dryRun),
				sftpdeploy.WithIgnoreMatcher(matcher),
				sftpdeploy.WithRetryConfig(retry),
			)
		},
	}
)

func init() {
	flags := rootCmd.Flags()
	flags.StringP("config", "c", "deploy.json", "path to the deploy file (JSON or YAML)")
	flags.Bool("dry", false, "log every mkdir and put without touching the server")
	flags.String("ignore-file", "", "gitignore-style exclusions (default <localRoot>/.deployignore)")
	flags.Int("connect-retries", sftpdeploy.DefaultRetryConfig().MaxRetries, "retries for transient connection failures")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "console", "log format: console or json")
	flags.SetNormalizeFunc(normalizeFlags)

	bindFlags()

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.NewLogger(viper.GetString("log-level"), viper.GetString("log-format"))
		return err
	}
}

// bindFlags wires every flag to viper so SFTP_DEPLOY_<FLAG> overrides defaults.
func bindFlags() {
	viper.SetEnvPrefix(sftpdeploy.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for _, name := range []string{"config", "dry", "ignore-file", "connect-retries", "log-level", "log-format"} {
		viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}
}

// normalizeFlags accepts --dry-run as an alias of --dry.
func normalizeFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "dry-run" {
		name = "dry"
	}
	return pflag.NormalizedName(name)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		if logger != nil {
			logger.Error("deploy failed", zap.Error(err))
			_ = logger.Sync()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
	if logger != nil {
		_ = logger.Sync()
	}
}
