package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type Session struct {
	ID         string
	PersonName string
	Message    string
	CreatedAt  time.Time
}

type Memory struct {
	ID        string
	SessionID string
	Sender    string
	Text      string
	Date      string
	Time      string
	CreatedAt time.Time
}
