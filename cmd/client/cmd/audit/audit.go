package audit

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"clubsync/cmd/client/cmd/view"
	"clubsync/internal/domain/audit"
)

var (
	limit int
	days  int
)

// AuditCmd родительская команда для работы с журналом
var AuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Журнал синхронизации",
	Long:  `Просмотр и очистка журнала операций синхронизации.`,
}

var RecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Последние операции",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return list(cmd, func(ctx context.Context, svc *audit.Service) ([]audit.Entry, error) {
			return svc.Recent(ctx, limit)
		})
	},
}

var FailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "Неуспешные операции",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return list(cmd, func(ctx context.Context, svc *audit.Service) ([]audit.Entry, error) {
			return svc.Failed(ctx, limit)
		})
	},
}

var PruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Удалить старые записи журнала",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := view.App(cmd)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("days") {
			days = app.Config().AuditRetentionDays
		}

		removed, err := app.Audit().Retain(cmd.Context(), days)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if view.JSON(cmd) {
			return view.PrintJSON(out, map[string]int64{"removed": removed})
		}
		fmt.Fprintf(out, "%s: %d\n", view.OK("Удалено записей"), removed)
		return nil
	},
}

func list(cmd *cobra.Command, fetch func(context.Context, *audit.Service) ([]audit.Entry, error)) error {
	app, err := view.App(cmd)
	if err != nil {
		return err
	}

	entries, err := fetch(cmd.Context(), app.Audit())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if view.JSON(cmd) {
		if entries == nil {
			entries = []audit.Entry{}
		}
		return view.PrintJSON(out, entries)
	}
	printEntries(out, entries)
	return nil
}

func printEntries(out io.Writer, entries []audit.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Записи не найдены")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ВРЕМЯ\tТАБЛИЦА\tID\tУДАЛЁННЫЙ ID\tОПЕРАЦИЯ\tНАПРАВЛЕНИЕ\tСТАТУС\tОШИБКА")
	for _, e := range entries {
		status := view.OK(e.Status)
		if e.Status == audit.StatusFailed {
			status = view.Bad(e.Status)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			view.Time(e.CreatedAt), e.Table, e.RecordID, view.OptID(e.RemoteID),
			e.Operation, e.Direction, status, e.Error)
	}
	w.Flush()
}

func init() {
	RecentCmd.Flags().IntVar(&limit, "limit", audit.DefaultLimit, "сколько записей показать")
	FailedCmd.Flags().IntVar(&limit, "limit", audit.DefaultLimit, "сколько записей показать")
	PruneCmd.Flags().IntVar(&days, "days", 0, "удалить записи старше заданного числа дней")
}
