// Package events provides event management functionality.
package events

import (
	"time"
)

// EventType represents different event types
type EventType string

const (
	RequestEnqueued     EventType = "REQUEST_ENQUEUED"
	RequestTransitioned EventType = "REQUEST_TRANSITIONED"
	TaskTransitioned    EventType = "TASK_TRANSITIONED"
	ResearchCompleted   EventType = "RESEARCH_COMPLETED"
	ScreenerRefreshed   EventType = "SCREENER_REFRESHED"
	ScheduleAssigned    EventType = "SCHEDULE_ASSIGNED"
	ArtifactArchived    EventType = "ARTIFACT_ARCHIVED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every event type the bus can carry, in a stable order.
// The websocket stream uses this when a client subscribes without a filter.
var AllEventTypes = []EventType{
	RequestEnqueued,
	RequestTransitioned,
	TaskTransitioned,
	ResearchCompleted,
	ScreenerRefreshed,
	ScheduleAssigned,
	ArtifactArchived,
	ErrorOccurred,
}

// Event represents a system event with its payload.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Module    string         `json:"module"`
	Data      map[string]any `json:"data"`
}
