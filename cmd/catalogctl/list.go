package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/simp-lee/gemfront/internal/catalog"
	"github.com/simp-lee/gemfront/internal/pkg"
)

func newListCmd(flags *queryFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print one page of gems as a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := fetch(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := pkg.WriteTable(out, snap.Result.Items); err != nil {
				return err
			}
			return writeSummary(out, snap.Pagination)
		},
	}
}

func newExportCmd(flags *queryFlags) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write one page of gems as CSV or PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "csv" && format != "pdf" {
				return fmt.Errorf("invalid --format %q: must be csv or pdf", format)
			}
			snap, err := fetch(cmd.Context(), flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			if format == "pdf" {
				return pkg.WritePDF(w, "Inventory", snap.Result.Items, snap.Pagination)
			}
			return pkg.WriteCSV(w, snap.Result.Items)
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "output format: csv or pdf")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func writeSummary(w io.Writer, meta catalog.PaginationMeta) error {
	_, err := fmt.Fprintf(w, "\npage %d of %d, %d records\n", meta.CurrentPage, meta.TotalPages, meta.TotalRecords)
	return err
}
