package record

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"clubsync/cmd/client/cmd/view"
	"clubsync/internal/domain/record"
)

var (
	showDeleted bool
	onlyStatus  string
)

var ListCmd = &cobra.Command{
	Use:   "list <table>",
	Short: "Список записей таблицы",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := view.App(cmd)
		if err != nil {
			return err
		}

		records, err := app.Records().List(cmd.Context(), args[0], showDeleted)
		if err != nil {
			return err
		}
		records = filterStatus(records, onlyStatus)

		out := cmd.OutOrStdout()
		if view.JSON(cmd) {
			if records == nil {
				records = []*record.Record{}
			}
			return view.PrintJSON(out, records)
		}

		if len(records) == 0 {
			fmt.Fprintln(out, "Записи не найдены")
			return nil
		}

		tbl, _ := app.Registry().Table(args[0])
		names := tbl.ColumnNames()

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "ID\t%s\tСТАТУС\tВЕРСИЯ\n", strings.ToUpper(strings.Join(names, "\t")))
		for _, rec := range records {
			values := make([]string, len(names))
			for i, n := range names {
				values[i] = record.Canonical(rec.Fields[n])
			}
			st := status(rec)
			if rec.IsDeleted() {
				st += " (удалена)"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", rec.ID, strings.Join(values, "\t"), st, rec.Meta.SyncVersion)
		}
		w.Flush()

		fmt.Fprintf(out, "\nНайдено записей: %d\n", len(records))
		return nil
	},
}

func filterStatus(records []*record.Record, status string) []*record.Record {
	if status == "" {
		return records
	}
	want := record.SyncStatus(strings.ToUpper(status))
	var out []*record.Record
	for _, rec := range records {
		if rec.Meta.SyncStatus == want {
			out = append(out, rec)
		}
	}
	return out
}

func init() {
	ListCmd.Flags().BoolVar(&showDeleted, "deleted", false, "показывать удалённые записи")
	ListCmd.Flags().StringVar(&onlyStatus, "status", "", "только записи в статусе pending, synced или conflict")
}
