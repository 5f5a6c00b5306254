package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/accessd/accessd/internal/server"
	"github.com/accessd/accessd/internal/version"
)

var (
	home, _       = os.UserHomeDir()
	defaultDBPath = filepath.Join(home, ".accessd", "accessd.db")
)

var rootCmd = &cobra.Command{
	Use:     "accessd",
	Short:   "Access-control resolution engine for hierarchical resource trees",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		config := &server.Config{
			HTTP: server.HTTPConfig{
				Addr:     viper.GetString("addr"),
				CertFile: viper.GetString("cert_file"),
				KeyFile:  viper.GetString("key_file"),
			},
			DBPath: viper.GetString("db_path"),
		}

		s, err := server.New(config)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return s.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().StringP("db", "d", defaultDBPath, "Path to the SQLite database")
	rootCmd.Flags().StringP("cert", "c", "", "Path to the TLS certificate file")
	rootCmd.Flags().StringP("key", "k", "", "Path to the TLS key file")
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command) error {
	viper.BindPFlag("addr", cmd.Flags().Lookup("bind"))
	viper.BindPFlag("db_path", cmd.Flags().Lookup("db"))
	viper.BindPFlag("cert_file", cmd.Flags().Lookup("cert"))
	viper.BindPFlag("key_file", cmd.Flags().Lookup("key"))
	viper.BindPFlag("log_level", cmd.Flags().Lookup("log-level"))

	viper.SetEnvPrefix("ACCESSD")
	viper.AutomaticEnv()

	setupLogger(viper.GetString("log_level"))
	return nil
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      lvl,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.SetDefault(slog.New(handler))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
