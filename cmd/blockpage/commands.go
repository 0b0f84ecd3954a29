package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/blockpage/pkg/registry"
	"github.com/hazyhaar/blockpage/pkg/render"
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			r, err := render.New(render.Config{TemplatesDir: cfg.Templates.Dir, Logger: logger})
			if err != nil {
				return err
			}
			reg, err := registry.Builtin(r, logger)
			if err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), cfg.Database, reg, logger)
			if err != nil {
				return err
			}
			defer b.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s database is up to date\n", cfg.Database.Driver)
			return nil
		},
	}
}

func newTypesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the registered block types",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			r, err := render.New(render.Config{TemplatesDir: cfg.Templates.Dir, Logger: logger})
			if err != nil {
				return err
			}
			reg, err := registry.Builtin(r, logger)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tNAME\tCATEGORY\tDESCRIPTION")
			for _, d := range reg.List() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Type, d.Metadata.DisplayName, d.Metadata.Category, d.Metadata.Description)
			}
			return tw.Flush()
		},
	}
}
