package sync

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"clubsync/cmd/client/cmd/view"
	"clubsync/internal/app/client"
	"clubsync/internal/domain/record"
	domainsync "clubsync/internal/domain/sync"
)

var (
	syncStatus    bool
	showConflicts bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Управление синхронизацией",
	Long: `Синхронизация локальной базы с общим хранилищем.

Сеанс сначала получает чужие изменения, затем отправляет свои. Без флагов
команда выполняет один сеанс и печатает его итоги.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := view.App(cmd)
		if err != nil {
			return err
		}

		switch {
		case syncStatus:
			return showSyncStatus(cmd, app)
		case showConflicts:
			return showSyncConflicts(cmd, app)
		}
		return runSync(cmd, app)
	},
}

func runSync(cmd *cobra.Command, app *client.App) error {
	out := cmd.OutOrStdout()

	result, err := app.SyncService().Sync(cmd.Context())
	if errors.Is(err, domainsync.ErrOffline) {
		fmt.Fprintln(out, view.Warn("Общее хранилище недоступно. Изменения сохранены локально и будут отправлены позже"))
		return nil
	}
	if result == nil {
		return err
	}

	if view.JSON(cmd) {
		if perr := view.PrintJSON(out, result); perr != nil {
			return perr
		}
		return err
	}

	printResult(out, result)
	return err
}

func printResult(out io.Writer, r *domainsync.Result) {
	if r.OK() {
		fmt.Fprintln(out, view.OK("Синхронизация завершена"))
	} else {
		fmt.Fprintln(out, view.Warn("Синхронизация завершена с ошибками"))
	}
	fmt.Fprintf(out, "Сеанс: %s, время: %v\n\n", r.SessionID, r.Duration().Round(time.Millisecond))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ТАБЛИЦА\tПОЛУЧЕНО\tОТПРАВЛЕНО\tОБНОВЛЕНО\tКОНФЛИКТЫ\tРАЗРЕШЕНО\tОТЛОЖЕНО\tОШИБКИ")
	for _, t := range r.Tables {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			t.Table, t.Pulled, t.Pushed, t.Refreshed, t.Conflicts, t.Resolved, t.Deferred, t.Failed)
	}
	fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
		view.Head("итого"), r.Pulled, r.Pushed, r.Refreshed, r.Conflicts, r.Resolved, r.Deferred, r.Failed)
	w.Flush()

	if r.Unresolved > 0 {
		fmt.Fprintf(out, "\n%s\n", view.Warn(fmt.Sprintf("Ожидают решения: %d. Смотрите clubsync sync --conflicts", r.Unresolved)))
	}
	for _, e := range r.Errors {
		fmt.Fprintf(out, "%s %s\n", view.Bad("•"), client.UserMessage(e.Err)+" ("+string(e.Phase)+" "+e.Table+")")
	}
}

// StatusReport состояние устройства
type StatusReport struct {
	DeviceID  string         `json:"device_id"`
	Remote    bool           `json:"remote_available"`
	Strategy  string         `json:"strategy"`
	Interval  string         `json:"interval"`
	Pending   map[string]int `json:"pending"`
	Conflicts int            `json:"conflicts"`
}

func showSyncStatus(cmd *cobra.Command, app *client.App) error {
	ctx := cmd.Context()
	cfg := app.Config()

	report := StatusReport{
		DeviceID: cfg.DeviceID,
		Remote:   app.RemoteAvailable(ctx),
		Strategy: cfg.ConflictStrategy.String(),
		Interval: cfg.SyncInterval.String(),
		Pending:  map[string]int{},
	}

	for _, t := range app.Registry().Tables() {
		rows, err := app.Records().List(ctx, t.Name, true)
		if err != nil {
			return err
		}
		for _, r := range rows {
			switch r.Meta.SyncStatus {
			case record.StatusPending:
				report.Pending[t.Name]++
			case record.StatusConflict:
				report.Conflicts++
			}
		}
	}

	out := cmd.OutOrStdout()
	if view.JSON(cmd) {
		return view.PrintJSON(out, report)
	}

	fmt.Fprintln(out, view.Head("=== Статус синхронизации ==="))
	fmt.Fprintf(out, "Устройство: %s\n", report.DeviceID)
	if report.Remote {
		fmt.Fprintf(out, "Общее хранилище: %s\n", view.OK("доступно"))
	} else {
		fmt.Fprintf(out, "Общее хранилище: %s\n", view.Warn("недоступно"))
	}
	fmt.Fprintf(out, "Стратегия конфликтов: %s\n", report.Strategy)
	fmt.Fprintf(out, "Интервал автосинхронизации: %s\n", report.Interval)

	total := 0
	for _, t := range app.Registry().Tables() {
		if n := report.Pending[t.Name]; n > 0 {
			fmt.Fprintf(out, "  %s: %d\n", t.Name, n)
			total += n
		}
	}
	fmt.Fprintf(out, "Ожидают отправки: %d\n", total)
	if report.Conflicts > 0 {
		fmt.Fprintf(out, "Конфликтов: %s\n", view.Bad(report.Conflicts))
	}
	return nil
}

func showSyncConflicts(cmd *cobra.Command, app *client.App) error {
	list, err := app.SyncService().Conflicts(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if view.JSON(cmd) {
		if list == nil {
			list = []*domainsync.Metadata{}
		}
		return view.PrintJSON(out, list)
	}

	if len(list) == 0 {
		fmt.Fprintln(out, view.OK("Конфликтов нет"))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ТАБЛИЦА\tID\tУДАЛЁННЫЙ ID\tВЕРСИЯ\tПОСЛЕДНЯЯ СИНХРОНИЗАЦИЯ\tПРИЧИНА")
	for _, md := range list {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t%s\n",
			md.Table, md.LocalID, view.OptID(md.RemoteID), md.SyncVersion, view.OptTime(md.LastSyncAt), md.ConflictResolution)
	}
	w.Flush()

	fmt.Fprintln(out, "\nРешение: clubsync sync resolve <таблица> <id> --take local|remote")
	return nil
}

func init() {
	SyncCmd.Flags().BoolVar(&syncStatus, "status", false, "показать статус синхронизации")
	SyncCmd.Flags().BoolVar(&showConflicts, "conflicts", false, "показать неразрешенные конфликты")
}
