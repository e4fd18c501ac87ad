package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"videosafety-worker/internal/models"
	"videosafety-worker/internal/storage/sqlstore"
	"videosafety-worker/internal/web/handlers"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		out    string
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write reports as CSV to a file or stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := models.ReportStatus(status)
			if st != "" && !st.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			store, err := sqlstore.Open(cmd.Context(), a.cfg.Database, a.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			reports, err := store.List(cmd.Context(), st, limit)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := handlers.WriteReportsCSV(w, reports, a.logger); err != nil {
				return err
			}
			a.logger.WithField("rows", len(reports)).Info("[App] export written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&status, "status", "", "only export reports with this status")
	cmd.Flags().IntVar(&limit, "limit", 1000, "maximum number of reports")
	return cmd
}
