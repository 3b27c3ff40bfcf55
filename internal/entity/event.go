package entity

import "log/slog"

// EventKind tags the variant carried by an Event.
type EventKind string

const (
	// EventProgress carries a Progress snapshot.
	EventProgress EventKind = "progress"
	// EventComplete carries the final path and Summary of a finished task.
	EventComplete EventKind = "complete"
	// EventError carries the failure message of a task.
	EventError EventKind = "error"
)

// Event is a single notification emitted by the download manager.
type Event struct {
	Kind     EventKind
	TaskID   string
	Progress Progress
	Path     string
	Summary  Summary
	Err      string
}

// IsTerminal reports whether the event ends the task lifecycle.
func (e Event) IsTerminal() bool {
	switch e.Kind {
	case EventComplete, EventError:
		return true
	case EventProgress:
		return e.Progress.State == StateCancelled
	}

	return false
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", string(e.Kind)),
		slog.String("task_id", e.TaskID),
	}

	switch e.Kind {
	case EventProgress:
		attrs = append(attrs, slog.Any("progress", e.Progress))
	case EventComplete:
		attrs = append(attrs, slog.String("path", e.Path), slog.Any("summary", e.Summary))
	case EventError:
		attrs = append(attrs, slog.String("error", e.Err))
	}

	return slog.GroupValue(attrs...)
}
