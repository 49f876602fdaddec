package appointment

import (
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
)

// State transitions:
//
//	SCHEDULED → CONFIRMED → IN_PROGRESS → COMPLETED
//	SCHEDULED → IN_PROGRESS
//	SCHEDULED | CONFIRMED | IN_PROGRESS → CANCELLED | MISSED
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusMissed     Status = "MISSED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusMissed:
		return true
	}
	return false
}

// IsOccupying reports whether an appointment in this status reserves the
// doctor's time slot.
func (s Status) IsOccupying() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

// OccupyingStatuses lists the statuses that block a doctor's calendar.
func OccupyingStatuses() []Status {
	return []Status{StatusScheduled, StatusConfirmed, StatusInProgress}
}

type Operation string

const (
	OpConfirm       Operation = "confirm"
	OpStartProgress Operation = "start_progress"
	OpComplete      Operation = "complete"
	OpCancel        Operation = "cancel"
	OpMarkMissed    Operation = "mark_missed"
)

type transition struct {
	from []Status
	to   Status
}

var transitions = map[Operation]transition{
	OpConfirm:       {from: []Status{StatusScheduled}, to: StatusConfirmed},
	OpStartProgress: {from: []Status{StatusScheduled, StatusConfirmed}, to: StatusInProgress},
	OpComplete:      {from: []Status{StatusInProgress}, to: StatusCompleted},
	OpCancel:        {from: []Status{StatusScheduled, StatusConfirmed, StatusInProgress, StatusCancelled}, to: StatusCancelled},
	OpMarkMissed:    {from: []Status{StatusScheduled, StatusConfirmed, StatusInProgress, StatusMissed}, to: StatusMissed},
}

// Next returns the status reached by applying op to s. It never mutates
// anything; callers decide whether to commit the result.
func (s Status) Next(op Operation) (Status, error) {
	t, ok := transitions[op]
	if ok {
		for _, from := range t.from {
			if from == s {
				return t.to, nil
			}
		}
	}
	return s, &domain.RuleViolation{
		Entity:    "appointment",
		Operation: string(op),
		From:      string(s),
		Err:       ErrInvalidStatusTransition,
	}
}
