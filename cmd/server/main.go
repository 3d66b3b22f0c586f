package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	gosync "sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"clubsync/internal/app/client"
	"clubsync/internal/app/server/api"
	"clubsync/internal/config"
	"clubsync/internal/utils/logger"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	address string
)

var rootCmd = &cobra.Command{
	Use:   "clubsyncd",
	Short: "Демон синхронизации clubsync",
	Long: `Демон периодически синхронизирует локальную базу с общим хранилищем
и предоставляет управляющий HTTP интерфейс.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
		}
		if address != "" {
			cfg.APIAddress = address
		}
		return run(cmd.Context(), cfg)
	},
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.LogFile != "" {
		return logger.New(cfg.Env, logger.WithFile(cfg.LogFile))
	}
	return logger.New(cfg.Env)
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := newLogger(cfg)

	app, err := client.New(ctx, cfg, log)
	if err != nil {
		log.Error("Ошибка инициализации приложения", "error", err)
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("Ошибка закрытия хранилищ", "error", err)
		}
	}()

	mux := api.New(ctx, api.Deps{
		DeviceID: cfg.DeviceID,
		Health:   app,
		Runner:   app.SyncService(),
		Resolver: app.SyncService(),
		Audit:    app.Audit(),
	}, log)

	srv := &http.Server{
		Addr:              cfg.APIAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg gosync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.SyncService().StartAutoSync(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Управляющий интерфейс запущен", "address", cfg.APIAddress, "device_id", cfg.DeviceID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Получен сигнал завершения")
	case serveErr = <-errCh:
		log.Error("Ошибка HTTP сервера", "error", serveErr)
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Ошибка остановки HTTP сервера", "error", err)
	}

	wg.Wait()
	waitIdle(shutdownCtx, app.SyncService())
	log.Info("Демон остановлен")
	return serveErr
}

// waitIdle ждёт завершения сеанса, запущенного через API. Сеанс видит
// отменённый контекст и останавливается между строками.
func waitIdle(ctx context.Context, s *client.SyncService) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for s.IsSyncing() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "конфигурационный файл (YAML)")
	rootCmd.Flags().StringVar(&address, "addr", "", "адрес управляющего интерфейса")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}
