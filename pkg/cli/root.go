package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bstardust/photokit/internal/backup"
	"github.com/bstardust/photokit/internal/config"
	"github.com/bstardust/photokit/internal/logger"
	"github.com/bstardust/photokit/pkg/imageio"
	"github.com/bstardust/photokit/pkg/photokit"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	jsonOut    bool
	noBackup   bool

	cfg *config.Config
	kit *photokit.Kit
	out io.Writer
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interruption signals
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		logger.Info("Received interrupt signal, stopping after the current file...")
		cancel()
	}()

	if err := NewRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		logger.Error("Error executing command: %v", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the photokit command tree writing results to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: out}

	rootCmd := &cobra.Command{
		Use:           "photokit",
		Short:         "Inspect and edit photo metadata",
		Long:          `A tool for reading EXIF and GPS metadata of RAW and standard photos, rewriting it with automatic backups, and converting images while keeping their metadata.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default ./photokit.yaml or ~/.config/photokit/photokit.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().BoolVar(&a.noBackup, "no-backup", false, "Do not back up metadata before rewriting files")

	rootCmd.AddCommand(
		newFormatsCommand(a),
		newInfoCommand(a),
		newGPSCommand(a),
		newExifCommand(a),
		newRestoreCommand(a),
		newBackupsCommand(a),
		newConvertCommand(a),
	)
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if a.noBackup {
		cfg.Backup.Enabled = false
	}
	logger.SetLevel(cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	cs, err := imageio.ParseColorSpace(cfg.ColorSpace)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.kit = photokit.New(photokit.Options{
		Encoder:     imageio.NewEncoder(cfg.JPEGQuality),
		ColorSpace:  cs,
		Location:    loc,
		ZoneFromGPS: cfg.ZoneFromGPS(),
		Concurrency: cfg.Concurrency,
	})
	return nil
}

// store opens the configured snapshot store. It returns nil when backups
// are disabled.
func (a *app) store(ctx context.Context) (backup.Store, error) {
	if !a.cfg.Backup.Enabled {
		return nil, nil
	}
	if a.cfg.UseS3() {
		s3 := a.cfg.Backup.S3
		return backup.NewS3Store(ctx, backup.S3Config{
			Endpoint:  s3.Endpoint,
			Region:    s3.Region,
			Bucket:    s3.Bucket,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			UseSSL:    s3.UseSSL,
			Prefix:    s3.Prefix,
		})
	}
	return backup.NewFileStore(a.cfg.Backup.JournalPath)
}

func (a *app) backupFunc(ctx context.Context, store backup.Store, path string) photokit.BackupFunc {
	if store == nil {
		return nil
	}
	return backup.Func(ctx, store, path)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printf(format string, v ...any) {
	fmt.Fprintf(a.out, format, v...)
}

// failures turns per-file errors into the command error.
func failures(failed, total int) error {
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d files failed", failed, total)
}
