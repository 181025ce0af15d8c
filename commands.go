package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"pdf_compressor/api"
	"pdf_compressor/pdf"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var outputPath string

// serveCmd runs the HTTP service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP compression service",
	Long: `Run the HTTP compression service.

Examples:
  # Serve with defaults on :8080
  pdfcompress serve

  # Override the port from the environment
  PDFCOMPRESS_SERVER_PORT=9000 pdfcompress serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// compressCmd compresses a single file
var compressCmd = &cobra.Command{
	Use:   "compress <in.pdf>",
	Short: "Compress one PDF file and print the result",
	Long: `Compress one PDF file and print the result as JSON.

The output file always receives a usable document: the compressed one, or a
copy of the input when compression was skipped or failed.

Examples:
  pdfcompress compress scan.pdf
  pdfcompress compress scan.pdf -o scan_small.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runCompress,
}

// sweepCmd reclaims orphaned working files
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete working files left behind by earlier runs",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

// probeCmd reports Ghostscript availability
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that Ghostscript can be invoked",
	Args:  cobra.NoArgs,
	RunE:  runProbe,
}

func init() {
	compressCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default <name>_compressed.pdf)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	logger := a.logger
	status := a.compressor.ToolStatus()
	if !status.Available {
		logger.Warn("ghostscript not available, documents will be returned uncompressed",
			zap.String("reason", status.Reason))
	}

	if a.cfg.Cleanup.SweepOnStart {
		if _, err := a.compressor.SweepOrphans(); err != nil {
			logger.Warn("startup sweep failed", zap.Error(err))
		}
	}

	router := api.NewRouter(a.compressor, &api.Config{
		MaxFileSize: a.cfg.Server.MaxFileSize,
		RateLimit:   a.cfg.Server.RateLimit,
		RateBurst:   a.cfg.Server.RateBurst,
	}, logger.Named("http"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.Int64("max_file_size", a.cfg.Server.MaxFileSize),
			zap.String("work_dir", a.compressor.WorkDir()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited gracefully")
	return nil
}

func runCompress(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	in := args[0]
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", in, err)
	}

	result, err := a.compressor.CompressPDF(data, filepath.Base(in))
	if err != nil {
		return err
	}

	out := outputPath
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + "_compressed.pdf"
	}
	if err := os.WriteFile(out, result.Buffer, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	return printJSON(cmd, struct {
		Output string `json:"output"`
		*pdf.CompressionResult
	}{Output: out, CompressionResult: result})
}

func runSweep(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.compressor.SweepOrphans()
	if err != nil {
		return err
	}
	return printJSON(cmd, report)
}

func runProbe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	status := a.compressor.ToolStatus()
	if err := printJSON(cmd, status); err != nil {
		return err
	}
	if !status.Available {
		return errors.New("ghostscript not available")
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
