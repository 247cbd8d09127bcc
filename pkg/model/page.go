package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the processing state of a tracked page.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusChecking Status = "CHECKING"
	StatusRunning  Status = "RUNNING"
	StatusOK       Status = "OK"
	StatusFailed   Status = "FAILED"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusChecking, StatusRunning, StatusOK, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends an update run.
func (s Status) Terminal() bool {
	return s == StatusOK || s == StatusFailed
}

// ParseStatus converts a stored status string, case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown page status %q", s)
	}
	return st, nil
}

// PageStatus is one row of the status table, keyed by (Wiki, Page).
type PageStatus struct {
	ID        int64     `json:"id"`
	Wiki      string    `json:"wiki"`
	Page      string    `json:"page"` // talk page title, underscore form
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
