package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/forPelevin/placecut/internal/config"
	"github.com/forPelevin/placecut/internal/logging"
	"github.com/forPelevin/placecut/internal/pipeline"
	"github.com/forPelevin/placecut/internal/server"
	"github.com/forPelevin/placecut/internal/tracing"
	"github.com/forPelevin/placecut/internal/types"
)

func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, found, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if found {
		logger.Debug("config loaded", slog.String("path", path))
	}
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if bind, _ := cmd.Flags().GetString("bind"); bind != "" {
		cfg.Server.Bind = bind
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	uc, err := pipeline.Build(cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Bind:           cfg.Server.Bind,
		ReadTimeout:    cfg.ReadTimeout(),
		WriteTimeout:   cfg.WriteTimeout(),
		MetricsEnabled: cfg.Metrics.Enabled,
	}, uc, logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")
	srv.Stop()
	return nil
}

func runAnalyze(cmd *cobra.Command, rawURL string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if stride, _ := cmd.Flags().GetInt("stride"); stride > 0 {
		cfg.Frames.Stride = stride
	}
	if maxFrames, _ := cmd.Flags().GetInt("max-frames"); maxFrames > 0 {
		cfg.Frames.MaxFrames = maxFrames
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	uc, err := pipeline.Build(cfg, logger)
	if err != nil {
		return err
	}

	res, err := uc.Run(ctx, rawURL)
	if err != nil {
		if asJSON {
			_ = writeJSON(cmd.OutOrStdout(), types.NewErrorResponse(err.Error()))
		}
		return fmt.Errorf("analyze: %w", err)
	}
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), types.NewProcessResponse(res))
	}
	renderResult(cmd.OutOrStdout(), res)
	return nil
}

func runSampleConfig(cmd *cobra.Command, _ []string) error {
	_, err := io.WriteString(cmd.OutOrStdout(), config.SampleConfig())
	return err
}

// setupTracing installs the OTLP exporter when an endpoint is configured.
// The returned func flushes it and is always safe to call.
func setupTracing(ctx context.Context, cfg *config.Config, logger *slog.Logger) (func(), error) {
	if cfg.Tracing.OTLPEndpoint == "" {
		return func() {}, nil
	}
	tp, err := tracing.InitTracer(ctx, tracing.Options{
		Endpoint:    cfg.Tracing.OTLPEndpoint,
		Environment: cfg.Tracing.Environment,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("tracing enabled",
		slog.String("endpoint", cfg.Tracing.OTLPEndpoint),
		slog.Float64("sample_ratio", cfg.Tracing.SampleRatio),
	)
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown", slog.String("error", err.Error()))
		}
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderResult(w io.Writer, res types.PipelineResult) {
	fmt.Fprintf(w, "%s by %s (%ds)\n", res.VideoInfo.Title, res.VideoInfo.Author, res.VideoInfo.DurationSeconds)
	if len(res.Locations) == 0 {
		fmt.Fprintln(w, "no locations found")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Name", "Address", "Lat", "Lon"})
	for i, l := range res.Locations {
		t.AppendRow(table.Row{i + 1, l.Name, l.Address, l.Latitude, l.Longitude})
	}
	t.Render()
}
