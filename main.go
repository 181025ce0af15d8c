// Package main implements pdfcompress: a Ghostscript-backed PDF compression
// service and command-line tool.
package main

import (
	"fmt"
	"os"

	"pdf_compressor/config"
	"pdf_compressor/logging"
	"pdf_compressor/pdf"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// configPath is the optional YAML configuration file
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pdfcompress",
	Short: "Compress PDF documents with Ghostscript",
	Long: `pdfcompress shrinks PDF documents by re-rendering them with Ghostscript.
Documents below the size threshold, and results that save less than 10%,
are returned unchanged.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(probeCmd)
}

// app is the state shared by every subcommand.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	compressor *pdf.Compressor
}

// setup loads .env and configuration, then builds the logger and compressor.
func setup() (*app, error) {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	compressor, err := pdf.NewCompressor(pdf.Options{
		WorkDir:        cfg.Compression.WorkDir,
		SizeThreshold:  cfg.Compression.ThresholdBytes,
		ToolPath:       cfg.Tool.Path,
		ValidateOutput: cfg.Compression.ValidateOutput,
		OrphanAge:      cfg.Cleanup.OrphanAge,
	}, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	return &app{cfg: cfg, logger: logger, compressor: compressor}, nil
}

// close waits for pending working-file reclaims and flushes the logger.
func (a *app) close() {
	a.compressor.Close()
	_ = a.logger.Sync()
}
