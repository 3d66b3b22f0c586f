// Package view общие части вывода команд клиента.
package view

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"clubsync/internal/app/client"
)

const TimeFormat = "2006-01-02 15:04:05"

var (
	OK   = color.New(color.FgGreen).SprintFunc()
	Warn = color.New(color.FgYellow).SprintFunc()
	Bad  = color.New(color.FgRed).SprintFunc()
	Head = color.New(color.Bold).SprintFunc()
)

// usageError ошибка в аргументах команды, показывается пользователю как есть
type usageError struct {
	msg string
}

func (e usageError) Error() string {
	return e.msg
}

func Usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func IsUsage(err error) bool {
	var u usageError
	return errors.As(err, &u)
}

// App достаёт приложение, созданное корневой командой.
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := client.FromContext(cmd.Context())
	if !ok || app == nil {
		return nil, Usagef("приложение не инициализировано")
	}
	return app, nil
}

// JSON сообщает, запрошен ли машиночитаемый вывод.
func JSON(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("json")
	return err == nil && v
}

func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func Time(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(TimeFormat)
}

func OptTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return Time(*t)
}

func OptID(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}
