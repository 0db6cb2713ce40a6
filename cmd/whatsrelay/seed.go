package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"whatsrelay/internal/database"
	"whatsrelay/internal/models"
	"whatsrelay/internal/service"
)

func newSeedCmd(opts *cliOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replay exported webhook payloads into the message store",
		Long: "Reads every *.json file in --dir, either a raw webhook body or one wrapped as " +
			`{"metaData": {...}}` + ", and runs it through ingestion. No realtime events are published.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, opts.verbose)

			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := database.Migrate(cmd.Context(), store); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}

			summary, err := seedDirectory(cmd.Context(), dir, service.NewSeedIngestionService(store, logger), logger)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Seeded %d files (%d skipped): %d created, %d duplicate, %d statuses updated, %d unmatched, %d failed\n",
				summary.Files, summary.Skipped, summary.Report.Created, summary.Report.Duplicate,
				summary.Report.Updated, summary.Report.Unmatched, summary.Report.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "external_webhooks", "Directory containing webhook JSON files")
	return cmd
}

type seedSummary struct {
	Files   int
	Skipped int
	Report  service.IngestReport
}

type payloadIngester interface {
	Ingest(ctx context.Context, payload *models.WebhookPayload) ([]models.DomainEvent, service.IngestReport)
}

// seedDirectory ingests every *.json file in dir in name order. Files that
// cannot be read or decoded are logged and skipped.
func seedDirectory(ctx context.Context, dir string, ingester payloadIngester, logger *logrus.Logger) (seedSummary, error) {
	var summary seedSummary

	info, err := os.Stat(dir)
	if err != nil {
		return summary, fmt.Errorf("seed directory: %w", err)
	}
	if !info.IsDir() {
		return summary, fmt.Errorf("seed directory: %s is not a directory", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return summary, fmt.Errorf("seed directory: %w", err)
	}
	sort.Strings(files)
	if len(files) == 0 {
		logger.WithField("file_path", dir).Warn("No JSON files found to seed")
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		fileLogger := logger.WithField("file_path", filepath.Base(file))
		payload, err := readSeedFile(file)
		if err != nil {
			fileLogger.WithError(err).Warn("Skipping seed file")
			summary.Skipped++
			continue
		}

		_, report := ingester.Ingest(ctx, payload)
		summary.Files++
		summary.Report.Add(report)

		fileLogger.WithFields(logrus.Fields{
			"created": report.Created,
			"updated": report.Updated,
			"failed":  report.Failed,
		}).Info("Seeded file")
	}
	return summary, nil
}

// readSeedFile decodes a raw or {"metaData": ...} wrapped webhook body.
// Exported samples often omit the object and field markers; they are filled
// in so ingestion accepts them.
func readSeedFile(path string) (*models.WebhookPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		MetaData json.RawMessage `json:"metaData"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if len(wrapper.MetaData) > 0 {
		data = wrapper.MetaData
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if len(payload.Entry) == 0 {
		return nil, fmt.Errorf("no webhook entries")
	}

	if payload.Object == "" {
		payload.Object = models.ObjectWhatsAppBusinessAccount
	}
	for i := range payload.Entry {
		for j := range payload.Entry[i].Changes {
			if payload.Entry[i].Changes[j].Field == "" {
				payload.Entry[i].Changes[j].Field = models.FieldMessages
			}
		}
	}
	return &payload, nil
}
