package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"image-compressor-go/internal/archive"
	"image-compressor-go/internal/codec"
	"image-compressor-go/internal/config"
	"image-compressor-go/internal/discovery"
	"image-compressor-go/internal/history"
	"image-compressor-go/internal/job"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/metadata"
	"image-compressor-go/internal/progress"
	"image-compressor-go/internal/task"
	"image-compressor-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile         string
	sourceDir       string
	outputDir       string
	quality         int
	concurrency     int
	recursive       bool
	deleteOriginals bool
	archiveFormat   string
	verbose         bool
	quiet           bool
	port            int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "image-compressor [directory]",
	Short: "Batch-compress all images in a directory to JPEG",
	Long: `ImageCompressor compresses every image in a directory to JPEG using a
bounded pool of parallel workers.

Features:
- Concurrent compression with configurable worker count
- Optional deletion of originals after successful compression
- Optional archiving of the output directory (zip built in, 7z external)
- Capture time preservation on compressed copies
- Remembers recently used paths across runs
- Comprehensive logging and a per-file failure report`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd, args)
	},
}

// scanCmd lists candidate files without compressing anything.
var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "List candidate images without compressing them",
	Long: `Scan the specified directory (or the configured source directory) and
list the image files a compression run would process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, args)
	},
}

// serveCmd starts the HTTP control server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control server",
	Long: `Starts an HTTP server that lets a front end start and cancel
compression jobs and stream progress events over a websocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().StringVar(&sourceDir, "source", "", "source directory containing images")
	rootCmd.Flags().StringVar(&outputDir, "output", "", "output directory for compressed images (default: <source>/compressed)")
	rootCmd.Flags().IntVar(&quality, "quality", 0, "JPEG quality, 1..100 (default from config)")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0, "worker count, 0 means host parallelism")
	rootCmd.Flags().BoolVar(&recursive, "recursive", true, "recurse into subdirectories")
	rootCmd.Flags().BoolVar(&deleteOriginals, "delete-originals", false, "delete originals after successful compression")
	rootCmd.Flags().StringVar(&archiveFormat, "archive", "", "archive format for the output directory (none, zip, 7z)")

	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run the control server on")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
}

// initConfig loads configuration file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.image-compressor")
		viper.AddConfigPath("/etc/image-compressor")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// runCompress executes a full compression job.
func runCompress(cmd *cobra.Command, args []string) error {
	cfg, store, err := loadConfig(cmd, args)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)

	executor := task.NewCompressExecutor(
		codec.NewJPEGCodec(),
		log,
		task.WithCaptureTimer(captureTimer(cfg, log)),
		task.WithEXIFCopier(exifCopier(cfg, log)),
		task.WithKeepLarger(cfg.Compression.KeepLarger),
	)

	coordinator := job.NewCoordinator(
		cfg,
		log,
		discovery.NewDiscoverer(log),
		executor,
		archive.NewInvoker(cfg.Archive.Format, cfg.Archive.Tool, log),
		&progress.LogReporter{Logger: log},
	)

	// SIGINT requests cancellation: in-flight tasks finish, nothing new
	// starts, collected outcomes are still reported.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := coordinator.Run(ctx)
	if err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}

	if store != nil {
		saveHistory(store, cfg, log)
	}

	if !quiet {
		fmt.Println("\n" + report.Summary())
	}

	return nil
}

// runScan lists the files a run would process.
func runScan(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd, args)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	discoverer := discovery.NewDiscoverer(log)

	files, err := discoverer.Discover(cfg.SourceDirectory, discovery.Options{
		Recursive:  cfg.Recursive,
		Extensions: cfg.SupportedExtensions,
		ExcludeDir: cfg.GetOutputDirectory(),
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	var total int64
	compressible := 0
	for _, f := range files {
		total += f.Size
		if f.Supported {
			compressible++
		}
		if !quiet {
			fmt.Printf("%-6s %10d  %s\n", f.Format, f.Size, f.Path)
		}
	}
	fmt.Printf("\n%d files (%d compressible), %d bytes total\n", len(files), compressible, total)
	return nil
}

// runServe starts the HTTP server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	server := web.NewServer(cfg, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("ImageCompressor control server started on http://localhost:%d\n", port)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped")
	return nil
}

// loadConfig loads configuration, prefills paths from history, and applies
// CLI overrides. The returned store is nil when history is disabled.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, history.Store, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	var store history.Store
	if cfg.History.Enabled {
		store = history.NewFileStore(cfg.History.FilePath)
		if h, err := store.Load(); err == nil && h.SourceDirectory != "" {
			if cfg.SourceDirectory == "" {
				cfg.SourceDirectory = h.SourceDirectory
			}
			if cfg.OutputDirectory == "" {
				cfg.OutputDirectory = h.OutputDirectory
			}
		}
	}

	if sourceDir != "" {
		cfg.SourceDirectory = sourceDir
	}
	if cfg.SourceDirectory == "" && len(args) > 0 {
		cfg.SourceDirectory = args[0]
	}
	if cfg.SourceDirectory == "" {
		cfg.SourceDirectory = "."
	}

	if outputDir != "" {
		cfg.OutputDirectory = outputDir
	}
	if quality > 0 {
		cfg.Compression.Quality = quality
	}
	if concurrency > 0 {
		cfg.Compression.Concurrency = concurrency
	}
	// A bool flag's default is indistinguishable from its zero override, so
	// only apply it when it was actually passed.
	if cmd.Flags().Changed("recursive") {
		cfg.Recursive = recursive
	}
	if deleteOriginals {
		cfg.Compression.DeleteOriginals = true
	}
	if archiveFormat != "" {
		cfg.Archive.Format = archiveFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, store, nil
}

// saveHistory remembers the paths and options of this run.
func saveHistory(store history.Store, cfg *config.Config, log *logrus.Logger) {
	h := &history.History{
		SourceDirectory:  cfg.SourceDirectory,
		OutputDirectory:  cfg.GetOutputDirectory(),
		ArchiveDirectory: cfg.GetArchiveDirectory(),
		ArchiveFormat:    cfg.Archive.Format,
		Quality:          cfg.Compression.Quality,
		Concurrency:      cfg.Compression.Concurrency,
		DeleteOriginals:  cfg.Compression.DeleteOriginals,
		Recursive:        cfg.Recursive,
	}
	if err := store.Save(h); err != nil {
		log.Warnf("Could not save path history: %v", err)
	}
}

// captureTimer returns the capture time extractor, or nil when disabled.
func captureTimer(cfg *config.Config, log *logrus.Logger) *metadata.CaptureTimer {
	if !cfg.Metadata.PreserveCaptureTime {
		return nil
	}
	return metadata.NewCaptureTimer(log)
}

// exifCopier returns the EXIF copier, or nil when disabled or when the
// exiftool helper is not installed. Missing exiftool is a soft condition:
// compression proceeds without metadata copying.
func exifCopier(cfg *config.Config, log *logrus.Logger) metadata.Copier {
	if !cfg.Metadata.CopyEXIF {
		return nil
	}
	copier, err := metadata.NewExiftoolCopier()
	if err != nil {
		log.Warnf("EXIF copying disabled: %v", err)
		return nil
	}
	return copier
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.Config{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !quiet,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.New(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
