package record

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clubsync/cmd/client/cmd/view"
	"clubsync/internal/domain/record"
)

// RecordCmd родительская команда для всех операций с записями
var RecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Управление записями",
	Long: `Создание, просмотр, изменение и удаление записей в локальной базе.

Каждое изменение увеличивает версию записи и помечает её для отправки
при следующей синхронизации.`,
}

// parseFields разбирает аргументы вида колонка=значение. Пустое значение
// означает NULL.
func parseFields(args []string) (record.Fields, error) {
	fields := make(record.Fields, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, view.Usagef("ожидается колонка=значение, получено %q", arg)
		}
		if value == "" {
			fields[name] = nil
			continue
		}
		fields[name] = value
	}
	return fields, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, view.Usagef("неверный ID записи: %s", s)
	}
	return id, nil
}

func printRecord(out io.Writer, rec *record.Record) {
	fmt.Fprintf(out, "%s %s/%d\n", view.Head("Запись"), rec.Table, rec.ID)

	names := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(out, "  %-14s %s\n", k+":", record.Canonical(rec.Fields[k]))
	}

	fmt.Fprintf(out, "  %-14s %s\n", "статус:", status(rec))
	fmt.Fprintf(out, "  %-14s %d\n", "версия:", rec.Meta.SyncVersion)
	fmt.Fprintf(out, "  %-14s %s\n", "изменено:", view.Time(rec.Meta.UpdatedAt))
	fmt.Fprintf(out, "  %-14s %s\n", "устройство:", rec.Meta.LastModifiedBy)
	fmt.Fprintf(out, "  %-14s %s\n", "синхронизация:", view.OptTime(rec.Meta.LastSyncAt))
	if rec.IsDeleted() {
		fmt.Fprintf(out, "  %-14s %s\n", "удалено:", view.OptTime(rec.Meta.DeletedAt))
	}
}

func status(rec *record.Record) string {
	switch rec.Meta.SyncStatus {
	case record.StatusSynced:
		return view.OK(rec.Meta.SyncStatus)
	case record.StatusConflict:
		return view.Bad(rec.Meta.SyncStatus)
	default:
		return view.Warn(rec.Meta.SyncStatus)
	}
}

// mutation общая часть create, update и delete
func mutation(cmd *cobra.Command, rec *record.Record, msg string) error {
	out := cmd.OutOrStdout()
	if view.JSON(cmd) {
		return view.PrintJSON(out, rec)
	}
	fmt.Fprintf(out, "%s %s/%d, версия %d\n", view.OK(msg), rec.Table, rec.ID, rec.Meta.SyncVersion)
	return nil
}
