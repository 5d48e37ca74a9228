package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the lifecycle transition a system notice records
type EventKind string

const (
	EventApproved  EventKind = "APPROVED"
	EventRejected  EventKind = "REJECTED"
	EventActivated EventKind = "ACTIVATED"
	EventFunded    EventKind = "FUNDED"
	EventCompleted EventKind = "COMPLETED"
	EventFailed    EventKind = "FAILED"
)

// LifecycleEvent is a system-authored, human-readable note appended to a
// campaign's activity feed when a transition fires. Purely observational;
// the engine never reads these back to make decisions.
type LifecycleEvent struct {
	ID         uuid.UUID
	CampaignID uuid.UUID
	Kind       EventKind
	Message    string
	CreatedAt  time.Time
}

// eventMessages holds the notice text per transition kind
var eventMessages = map[EventKind]string{
	EventApproved:  "Campaign was approved and is awaiting activation.",
	EventRejected:  "Campaign was rejected.",
	EventActivated: "Campaign is now live and accepting donations.",
	EventFunded:    "Campaign reached its funding goal.",
	EventCompleted: "Campaign completed successfully.",
	EventFailed:    "Campaign did not reach its goal before the deadline.",
}

// NewLifecycleEvent builds the system notice for a transition on c
func NewLifecycleEvent(campaignID uuid.UUID, kind EventKind, at time.Time) *LifecycleEvent {
	msg, ok := eventMessages[kind]
	if !ok {
		msg = string(kind)
	}
	return &LifecycleEvent{
		ID:         uuid.New(),
		CampaignID: campaignID,
		Kind:       kind,
		Message:    msg,
		CreatedAt:  at,
	}
}
