package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MLSAKIIT/Showcase/internal/config"
	"github.com/MLSAKIIT/Showcase/internal/repositories"
	"github.com/MLSAKIIT/Showcase/internal/services"
)

func newExportCmd(cfg *config.Config) *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "export <job_id>",
		Short: "Export the portfolio of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Reject unknown formats before touching the database.
			exportFormat, err := services.CheckExportFormat(format)
			if err != nil {
				return err
			}
			jobID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}

			log := newLogger(cmd.ErrOrStderr(), cfg.Server.Debug)
			db, err := config.InitDatabase(cfg, log)
			if err != nil {
				return err
			}

			portfolio, err := repositories.NewPortfolioRepository(db).FindByJobID(jobID)
			if errors.Is(err, repositories.ErrPortfolioNotFound) {
				return fmt.Errorf("job %s has no portfolio yet", jobID)
			}
			if err != nil {
				return err
			}

			export, err := services.ExportPortfolio(portfolio.Data(), exportFormat)
			if err != nil {
				return err
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(export.Body)
				return err
			}
			if err := os.WriteFile(out, export.Body, 0644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			log.Info("✅ Portfolio exported", "job_id", jobID, "format", export.Format, "file", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", services.ExportJSON, "json, yaml or html_preview")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to this file instead of stdout")
	return cmd
}
