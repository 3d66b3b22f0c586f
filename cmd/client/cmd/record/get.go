package record

import (
	"github.com/spf13/cobra"

	"clubsync/cmd/client/cmd/view"
)

var GetCmd = &cobra.Command{
	Use:   "get <table> <id>",
	Short: "Просмотреть запись",
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

		rec, err := app.Records().Get(cmd.Context(), args[0], id)
		if err != nil {
			return err
		}

		if view.JSON(cmd) {
			return view.PrintJSON(cmd.OutOrStdout(), rec)
		}
		printRecord(cmd.OutOrStdout(), rec)
		return nil
	},
}
