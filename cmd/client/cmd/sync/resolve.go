package sync

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"clubsync/cmd/client/cmd/view"
	domainsync "clubsync/internal/domain/sync"
)

var take string

var ResolveCmd = &cobra.Command{
	Use:   "resolve <table> <id>",
	Short: "Разрешить конфликт",
	Long: `Разрешает конфликт записи вручную.

--take local  отправляет локальную версию в общее хранилище
--take remote заменяет локальную версию удалённой`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := view.App(cmd)
		if err != nil {
			return err
		}

		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return view.Usagef("неверный ID записи: %s", args[1])
		}
		action, err := domainsync.ParseAction(take)
		if err != nil || (action != domainsync.TakeLocal && action != domainsync.TakeRemote) {
			return view.Usagef("--take принимает значения local или remote")
		}

		res, err := app.SyncService().ResolveConflict(cmd.Context(), args[0], id, action)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if view.JSON(cmd) {
			return view.PrintJSON(out, res)
		}
		fmt.Fprintf(out, "%s %s/%d: %s\n", view.OK("Конфликт разрешён"), args[0], id, res.Reason)
		return nil
	},
}

func init() {
	ResolveCmd.Flags().StringVar(&take, "take", "", "какую версию оставить: local или remote")
	_ = ResolveCmd.MarkFlagRequired("take")
}
