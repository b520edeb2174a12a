// Command showcasectl is the operator tool for the Showcase backend: it
// inspects the template catalogue, exports portfolios and rebuilds the
// search index.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MLSAKIIT/Showcase/internal/config"
)

var templatesDir string

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "showcasectl",
		Short:         "Showcase AI operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&templatesDir, "templates-dir", cfg.Templates.Dir, "Directory holding registry.json and the templates")

	root.AddCommand(newTemplatesCmd())
	root.AddCommand(newExportCmd(cfg))
	root.AddCommand(newReindexCmd(cfg))
	return root
}

func main() {
	// config.Load also reads .env when present
	cfg := config.Load()

	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
