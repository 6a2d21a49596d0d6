package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/FACorreiaa/go-travel-book/config"
)

var _ DocumentRenderer = (*ChromiumRenderer)(nil)

// ChromiumRenderer shells out to headless Chromium to print the HTML to PDF.
// The subprocess gets its own deadline; a hung or crashed browser fails one
// render, not the service.
type ChromiumRenderer struct {
	logger     *slog.Logger
	binaryPath string
	timeout    time.Duration
}

func NewChromiumRenderer(cfg *config.Config, logger *slog.Logger) *ChromiumRenderer {
	return &ChromiumRenderer{
		logger:     logger,
		binaryPath: cfg.Renderer.ChromiumPath,
		timeout:    cfg.Renderer.Timeout,
	}
}

func (r *ChromiumRenderer) RenderPDF(ctx context.Context, html, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	htmlFile, err := os.CreateTemp("", "travelbook-*.html")
	if err != nil {
		return fmt.Errorf("failed to create temp html file: %w", err)
	}
	defer os.Remove(htmlFile.Name())

	if _, err := htmlFile.WriteString(html); err != nil {
		htmlFile.Close()
		return fmt.Errorf("failed to write temp html file: %w", err)
	}
	if err := htmlFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp html file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binaryPath,
		"--headless",
		"--disable-gpu",
		"--no-sandbox",
		"--no-pdf-header-footer",
		"--print-to-pdf="+outputPath,
		"file://"+htmlFile.Name(),
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		r.logger.ErrorContext(ctx, "Chromium PDF rendering failed",
			slog.String("output", string(output)), slog.Any("error", err))
		return fmt.Errorf("chromium exited with error: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("pdf was not written: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("pdf at %s is empty", outputPath)
	}

	r.logger.InfoContext(ctx, "PDF rendered",
		slog.String("path", outputPath), slog.Int64("bytes", info.Size()))
	return nil
}
