package controller

import "github.com/scrapevault/scrapevault/internal/models"

// EventKind names the shape of an Event's payload.
type EventKind string

const (
	EventStarted         EventKind = "started"
	EventProgress        EventKind = "progress"
	EventLog             EventKind = "log"
	EventResultsUpdated  EventKind = "results_updated"
	EventFinished        EventKind = "finished"
	EventError           EventKind = "error"
)

// Event is the single typed value delivered on Controller's event
// channel. Only the fields relevant to Kind are populated; the rest
// are zero.
type Event struct {
	Kind EventKind

	Done, Total int // EventProgress; also success/total for download EventFinished

	Message string // EventLog, EventError

	Data models.ScrapedData // EventResultsUpdated, crawl EventFinished
}
