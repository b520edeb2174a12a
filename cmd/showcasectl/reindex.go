package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MLSAKIIT/Showcase/internal/config"
	"github.com/MLSAKIIT/Showcase/internal/ratelimit"
	"github.com/MLSAKIIT/Showcase/internal/repositories"
	"github.com/MLSAKIIT/Showcase/internal/services"
)

func newReindexCmd(cfg *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Re-embed every published portfolio into the search index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := newLogger(cmd.ErrOrStderr(), cfg.Server.Debug)
			log.Info("🚀 Starting portfolio reindex...")

			if cfg.Qdrant.URL == "" {
				return fmt.Errorf("QDRANT_URL is not configured")
			}

			db, err := config.InitDatabase(cfg, log)
			if err != nil {
				return err
			}

			model, err := services.NewGeminiService(ctx, services.GeminiOptions{
				APIKey:         cfg.Gemini.APIKey,
				EmbeddingModel: cfg.Gemini.EmbeddingModel,
				Limiter: ratelimit.NewRegistry(ratelimit.Config{
					Limit: cfg.Gemini.RequestsPerMinute,
					Burst: cfg.Gemini.Burst,
				}),
				Logger: log,
			})
			if err != nil {
				return err
			}

			index, err := services.NewPortfolioIndex(cfg.Qdrant, model, log)
			if err != nil {
				return err
			}
			if err := index.EnsureCollection(ctx); err != nil {
				return err
			}

			portfolios, err := repositories.NewPortfolioRepository(db).ListPublished(limit)
			if err != nil {
				return err
			}
			log.Info("📄 Published portfolios found", "count", len(portfolios))

			successCount, failCount := 0, 0
			for i := range portfolios {
				p := &portfolios[i]
				if err := index.Index(ctx, p); err != nil {
					log.Error("❌ Failed to index portfolio", "portfolio_id", p.ID, "slug", p.Slug, "error", err)
					failCount++
					continue
				}
				successCount++
				if successCount%10 == 0 {
					log.Info("📊 Progress", "indexed", successCount, "total", len(portfolios))
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Repeat("=", 60))
			fmt.Fprintln(out, "📊 Reindex Summary:")
			fmt.Fprintf(out, "   ✅ Successful: %d portfolios\n", successCount)
			fmt.Fprintf(out, "   ❌ Failed: %d portfolios\n", failCount)
			fmt.Fprintln(out, strings.Repeat("=", 60))

			if failCount > 0 {
				return fmt.Errorf("%d portfolios failed to index", failCount)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Index at most this many portfolios (0 for all)")
	return cmd
}
