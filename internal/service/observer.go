package service

import (
	"context"

	"grabtube/internal/entity"
)

// Observer receives task notifications, one method per event kind.
// Methods run on the goroutine calling Dispatch and must not block.
type Observer interface {
	OnProgress(taskID string, p entity.Progress)
	OnComplete(taskID, path string, summary entity.Summary)
	OnError(taskID, message string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Progress func(taskID string, p entity.Progress)
	Complete func(taskID, path string, summary entity.Summary)
	Error    func(taskID, message string)
}

var _ Observer = ObserverFuncs{}

// OnProgress calls f.Progress if set.
func (f ObserverFuncs) OnProgress(taskID string, p entity.Progress) {
	if f.Progress != nil {
		f.Progress(taskID, p)
	}
}

// OnComplete calls f.Complete if set.
func (f ObserverFuncs) OnComplete(taskID, path string, summary entity.Summary) {
	if f.Complete != nil {
		f.Complete(taskID, path, summary)
	}
}

// OnError calls f.Error if set.
func (f ObserverFuncs) OnError(taskID, message string) {
	if f.Error != nil {
		f.Error(taskID, message)
	}
}

// Dispatch forwards events to obs until events is closed or ctx is done.
func Dispatch(ctx context.Context, events <-chan entity.Event, obs Observer) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			switch ev.Kind {
			case entity.EventProgress:
				obs.OnProgress(ev.TaskID, ev.Progress)
			case entity.EventComplete:
				obs.OnComplete(ev.TaskID, ev.Path, ev.Summary)
			case entity.EventError:
				obs.OnError(ev.TaskID, ev.Err)
			}
		}
	}
}
