package domain

import (
	"strconv"
	"strings"
)

// QueueStatus is the state of a queue entry.
type QueueStatus string

const (
	QueueStatusWaiting QueueStatus = "waiting"
	QueueStatusPaused  QueueStatus = "paused"
)

// QueueEntry is one driver waiting for a booking.
// Timestamp (unix milliseconds) is both the ordering key and the unique key.
type QueueEntry struct {
	DriverID   string
	DriverRFID string
	DriverName string
	TodaNumber string
	Timestamp  int64
	Status     QueueStatus
}

// Key returns the entry's unique key.
func (e *QueueEntry) Key() string {
	return strconv.FormatInt(e.Timestamp, 10)
}

// Eligible reports whether the matcher may claim the entry.
func (e *QueueEntry) Eligible() bool {
	return e.Status == QueueStatusWaiting && strings.TrimSpace(e.DriverRFID) != ""
}

// DriverStatus is the derived availability of a driver.
type DriverStatus struct {
	DriverID string `json:"driver_id"`
	Online   bool   `json:"online"`
	Position int    `json:"position,omitempty"` // 1-based, 0 when not queued
	Status   string `json:"queue_status,omitempty"`
}
