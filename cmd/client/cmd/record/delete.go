package record

import (
	"github.com/spf13/cobra"

	"clubsync/cmd/client/cmd/view"
)

var DeleteCmd = &cobra.Command{
	Use:   "delete <table> <id>",
	Short: "Удалить запись",
	Long:  `Помечает запись удалённой. Удаление распространяется на другие устройства при синхронизации.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := view.App(cmd)
		if err != nil {
			return err
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}

		rec, err := app.Records().Delete(cmd.Context(), args[0], id)
		if err != nil {
			return err
		}
		return mutation(cmd, rec, "Запись удалена")
	},
}
