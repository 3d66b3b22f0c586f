package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"clubsync/cmd/client/cmd/audit"
	"clubsync/cmd/client/cmd/record"
	"clubsync/cmd/client/cmd/sync"
	"clubsync/cmd/client/cmd/view"
	domainsync "clubsync/internal/domain/sync"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Подготовить базы данных",
	Long: `Команда init применяет миграции схемы к локальной базе и, если оно
доступно, к общему хранилищу.

Без доступа к общему хранилищу локальная база всё равно будет готова к работе.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := view.App(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, view.Head("=== Инициализация clubsync ==="))
		fmt.Fprintf(out, "Устройство:     %s\n", app.Config().DeviceID)
		fmt.Fprintf(out, "Локальная база: %s\n", app.LocalPath())

		err = app.Migrate(cmd.Context())
		switch {
		case errors.Is(err, domainsync.ErrOffline):
			fmt.Fprintln(out, view.Warn("Общее хранилище недоступно, подготовлена только локальная база"))
			return nil
		case err != nil:
			return err
		}

		if app.Config().HasRemote() {
			fmt.Fprintln(out, view.OK("Локальная база и общее хранилище готовы"))
		} else {
			fmt.Fprintln(out, view.OK("Локальная база готова"))
			fmt.Fprintln(out, "Общее хранилище не настроено, работа только в офлайн-режиме")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	rootCmd.AddCommand(record.RecordCmd)
	record.RecordCmd.AddCommand(record.ListCmd)
	record.RecordCmd.AddCommand(record.GetCmd)
	record.RecordCmd.AddCommand(record.CreateCmd)
	record.RecordCmd.AddCommand(record.UpdateCmd)
	record.RecordCmd.AddCommand(record.DeleteCmd)

	rootCmd.AddCommand(sync.SyncCmd)
	sync.SyncCmd.AddCommand(sync.ResolveCmd)

	rootCmd.AddCommand(audit.AuditCmd)
	audit.AuditCmd.AddCommand(audit.RecentCmd)
	audit.AuditCmd.AddCommand(audit.FailedCmd)
	audit.AuditCmd.AddCommand(audit.PruneCmd)
}
