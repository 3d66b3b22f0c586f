package record

import (
	"github.com/spf13/cobra"

	"clubsync/cmd/client/cmd/view"
)

var UpdateCmd = &cobra.Command{
	Use:   "update <table> <id> <колонка=значение>...",
	Short: "Изменить запись",
	Long: `Изменение колонок записи. Незаданные колонки сохраняют значения,
пустое значение (колонка=) записывает NULL.`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := view.App(cmd)
		if err != nil {
			return err
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		fields, err := parseFields(args[2:])
		if err != nil {
			return err
		}

		rec, err := app.Records().Update(cmd.Context(), args[0], id, fields)
		if err != nil {
			return err
		}
		return mutation(cmd, rec, "Запись изменена")
	},
}
