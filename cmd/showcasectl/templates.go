package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MLSAKIIT/Showcase/internal/toolkit"
)

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect the template catalogue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every registered template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := toolkit.LoadTemplateRegistry(templatesDir)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tFRAMEWORK\tTYPE\tFEATURES")
			for _, t := range registry.ListTemplates() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n", t.ID, t.Name, t.Framework, t.Type, t.Features)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <template_id>",
		Short: "Print one template as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := toolkit.LoadTemplateRegistry(templatesDir)
			if err != nil {
				return err
			}
			tmpl, err := registry.GetTemplate(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), tmpl)
		},
	})

	var role string
	var features []string
	match := &cobra.Command{
		Use:   "match",
		Short: "Show the templates recommended for a role or feature set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if role == "" && len(features) == 0 {
				return fmt.Errorf("one of --role or --feature is required")
			}
			registry, err := toolkit.LoadTemplateRegistry(templatesDir)
			if err != nil {
				return err
			}

			out := map[string]any{}
			if role != "" {
				out["role_match"] = registry.FindTemplatesByRole(role)
			}
			if len(features) > 0 {
				out["feature_matches"] = registry.FindTemplatesByFeatures(features)
			}
			out["default"] = registry.DefaultTemplate()
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	match.Flags().StringVar(&role, "role", "", "Job title to match against the role keys")
	match.Flags().StringSliceVar(&features, "feature", nil, "Feature every template must offer (repeatable)")
	cmd.AddCommand(match)

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
