package record

import (
	"github.com/spf13/cobra"

	"clubsync/cmd/client/cmd/view"
)

var CreateCmd = &cobra.Command{
	Use:   "create <table> <колонка=значение>...",
	Short: "Создать запись",
	Long: `Создание записи в локальной базе.

Пример:
  clubsync record create members first_name=Анна last_name=Петрова active=true`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := view.App(cmd)
		if err != nil {
			return err
		}
		fields, err := parseFields(args[1:])
		if err != nil {
			return err
		}

		rec, err := app.Records().Create(cmd.Context(), args[0], fields)
		if err != nil {
			return err
		}
		return mutation(cmd, rec, "Запись создана")
	},
}
