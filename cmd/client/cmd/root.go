package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
	"golang.org/x/term"

	"clubsync/cmd/client/cmd/view"
	"clubsync/internal/app/client"
	"clubsync/internal/config"
	"clubsync/internal/utils/logger"
)

var (
	cfgFile     string
	debug       bool
	jsonOutput  bool
	remoteURI   string
	deviceID    string
	askPassword bool
	app         *client.App
)

var rootCmd = &cobra.Command{
	Use:   "clubsync",
	Short: "clubsync - синхронизация данных клуба между устройствами",
	Long: `clubsync хранит данные клуба в локальной базе SQLite и синхронизирует
их с общим хранилищем PostgreSQL.

Без подключения к сети все изменения сохраняются локально и отправляются
при следующей успешной синхронизации.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Ошибка:"), describe(err))
		os.Exit(1)
	}
}

// describe переводит ошибку в сообщение для пользователя. В отладочном
// режиме к нему добавляется исходный текст ошибки.
func describe(err error) string {
	if view.IsUsage(err) {
		return err.Error()
	}
	msg := client.UserMessage(err)
	if debug {
		msg += " (" + err.Error() + ")"
	}
	return msg
}

func setupApp(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
		return nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return view.Usagef("ошибка загрузки конфигурации: %v", err)
	}

	if remoteURI != "" {
		cfg.RemoteDatabaseURI = remoteURI
	}
	if deviceID != "" {
		cfg.DeviceID = deviceID
	}

	log := newLogger(cfg)

	var opts []client.Option
	if askPassword {
		password, err := readPassword()
		if err != nil {
			return view.Usagef("ошибка чтения пароля: %v", err)
		}
		opts = append(opts, client.WithRemotePassword(password))
	}

	app, err = client.New(cmd.Context(), cfg, log, opts...)
	if err != nil {
		log.Error("Ошибка инициализации приложения", "error", err)
		return err
	}

	cmd.SetContext(client.WithApp(cmd.Context(), app))
	return nil
}

func closeApp(_ *cobra.Command, _ []string) error {
	if app == nil {
		return nil
	}
	return app.Close()
}

func newLogger(cfg *config.Config) *slog.Logger {
	switch {
	case cfg.LogFile != "":
		return logger.New(cfg.Env, logger.WithFile(cfg.LogFile))
	case debug:
		return logger.New(cfg.Env, logger.WithOutput(os.Stderr))
	default:
		return logger.Discard()
	}
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Пароль общего хранилища: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(password)), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл (YAML)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().StringVar(&remoteURI, "remote", "", "строка подключения к общему хранилищу")
	rootCmd.PersistentFlags().StringVar(&deviceID, "device", "", "идентификатор устройства")
	rootCmd.PersistentFlags().BoolVar(&askPassword, "ask-password", false, "запросить пароль общего хранилища")
}
