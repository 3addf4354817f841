package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/SebastienElet/libxl-fetch/internal/config"
	"github.com/SebastienElet/libxl-fetch/internal/logger"
	"github.com/SebastienElet/libxl-fetch/internal/service/fetcher"
	"github.com/SebastienElet/libxl-fetch/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// quiet disables the download progress bar.
	quiet bool

	// logLevel sets the minimum level for console logging.
	logLevel string

	// rootCmd represents the base command for fetching the native dependency.
	rootCmd = &cobra.Command{
		Use:   "libxl-fetch",
		Short: "Download and install the libxl native library for the build",
		Long: "Connects to the vendor's FTP host, selects the newest archive published " +
			"for this platform, downloads and extracts it, and places it under the fixed " +
			"dependency path. Set " + config.ArchiveOverrideEnv + " to a local archive " +
			"path to skip the network fetch entirely.",
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &fetcher.Options{
				ConfigPath: configPath,
				Quiet:      quiet,
			}

			return fetcher.Run(ctx, options)
		},
	}
)

// Execute runs the libxl-fetch CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable the download progress bar")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")
	rootCmd.SilenceUsage = true
}
