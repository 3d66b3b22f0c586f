// Package audit ведёт журнал результатов операций синхронизации.
package audit

import (
	"time"
)

type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
)

type Direction string

const (
	DirectionPull Direction = "PULL"
	DirectionPush Direction = "PUSH"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Entry запись журнала. Все записи одного сеанса имеют общий SessionID.
type Entry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	DeviceID  string    `json:"device_id"`
	Table     string    `json:"table"`
	RecordID  int64     `json:"record_id"`
	RemoteID  *int64    `json:"remote_id,omitempty"`
	Operation Operation `json:"operation"`
	Direction Direction `json:"direction"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
