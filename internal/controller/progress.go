package controller

import "github.com/schollz/progressbar/v3"

// NewProgressBar builds the progress bar a CLI subscriber renders from
// EventProgress ticks. Pass total as -1 for an indeterminate bar when
// the item count isn't known yet.
func NewProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Drain renders events from the Controller's channel onto bar until it
// sees a finished or error event, for callers that just want a
// blocking progress bar instead of handling the event stream
// themselves (the common case for the CLI).
func Drain(events <-chan Event, bar *progressbar.ProgressBar, onLog func(string)) Event {
	for e := range events {
		switch e.Kind {
		case EventProgress:
			bar.ChangeMax(e.Total)
			bar.Set(e.Done)
		case EventLog:
			if onLog != nil {
				onLog(e.Message)
			}
		case EventFinished, EventError:
			return e
		}
	}
	return Event{}
}
