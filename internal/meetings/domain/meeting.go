// Package domain defines booked meetings between a lead and an agent.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusCanceled    Status = "canceled"
	StatusNoShow      Status = "no_show"
	StatusRescheduled Status = "rescheduled"
	StatusCompleted   Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCanceled, StatusNoShow, StatusRescheduled, StatusCompleted:
		return true
	}
	return false
}

type Meeting struct {
	ID              uuid.UUID
	LeadID          uuid.UUID
	ExternalEventID string
	StartTime       time.Time
	EndTime         time.Time
	Status          Status
	Location        string
	Source          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Upcoming reports whether the meeting is still scheduled and has not started.
func (m Meeting) Upcoming(now time.Time) bool {
	return m.Status == StatusScheduled && m.StartTime.After(now)
}
