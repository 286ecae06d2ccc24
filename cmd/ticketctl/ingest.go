package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicetoya86/ticket/internal/app"
	"github.com/nicetoya86/ticket/internal/ingestion"
	"github.com/nicetoya86/ticket/internal/metrics"
	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/pkg/config"
	"github.com/nicetoya86/ticket/pkg/logger"
)

var kst = time.FixedZone("KST", 9*3600)

// parseDay reads a KST calendar day. end moves it to the last second of
// that day.
func parseDay(v string, end bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, kst)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", v, err)
	}
	if end {
		t = t.AddDate(0, 0, 1).Add(-time.Second)
	}
	return t, nil
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Copy tickets and chats from the vendors into the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			fromFlag, _ := cmd.Flags().GetString("from")
			toFlag, _ := cmd.Flags().GetString("to")

			from, err := parseDay(fromFlag, false)
			if err != nil {
				return err
			}
			to, err := parseDay(toFlag, true)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.Logging.Level, "console", "stderr"); err != nil {
				return err
			}
			defer logger.Sync()
			metrics.Init()

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runIngest(ctx, cmd, a.Ingestion, source, from, to)
		},
	}

	cmd.Flags().String("source", "", "zendesk or channel; both when empty")
	cmd.Flags().String("from", "", "First KST day of the chat window (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last KST day of the chat window (YYYY-MM-DD)")

	return cmd
}

type ingester interface {
	IngestZendesk(ctx context.Context) (*ingestion.Report, error)
	IngestChannel(ctx context.Context, from, to time.Time) (*ingestion.Report, error)
}

func runIngest(ctx context.Context, cmd *cobra.Command, p ingester, source string, from, to time.Time) error {
	var reports []*ingestion.Report

	switch source {
	case "", models.SourceZendesk, models.SourceChannel:
	default:
		return fmt.Errorf("unknown source %q", source)
	}

	if source == "" || source == models.SourceZendesk {
		report, err := p.IngestZendesk(ctx)
		switch {
		case source == "" && errors.Is(err, ingestion.ErrNotConfigured):
			fmt.Fprintln(cmd.ErrOrStderr(), "zendesk: skipped, not configured")
		case err != nil:
			return err
		default:
			reports = append(reports, report)
		}
	}
	if source == "" || source == models.SourceChannel {
		report, err := p.IngestChannel(ctx, from, to)
		switch {
		case source == "" && errors.Is(err, ingestion.ErrNotConfigured):
			fmt.Fprintln(cmd.ErrOrStderr(), "channel: skipped, not configured")
		case err != nil:
			return err
		default:
			reports = append(reports, report)
		}
	}
	return writeJSON(cmd, reports)
}
