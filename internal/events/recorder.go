package events

import (
	"context"
	"log/slog"

	"github.com/cleverhoods/sagecompass-sub001/internal/dto"
	"github.com/cleverhoods/sagecompass-sub001/internal/state"
)

// Observer receives events as they are recorded into run state.
type Observer interface {
	Observe(ctx context.Context, ev dto.TraceEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev dto.TraceEvent)

func (f ObserverFunc) Observe(ctx context.Context, ev dto.TraceEvent) {
	f(ctx, ev)
}

type logObserver struct {
	logger *slog.Logger
}

// LogObserver writes each event to logger as a structured "trace_event"
// record.
func LogObserver(logger *slog.Logger) Observer {
	return &logObserver{logger: logger.With("component", "events")}
}

func (o *logObserver) Observe(ctx context.Context, ev dto.TraceEvent) {
	level := slog.LevelInfo
	if ev.Kind == dto.KindError {
		level = slog.LevelError
	}

	o.logger.Log(
		ctx, level, "trace_event",
		"uid", ev.ID,
		"kind", ev.Kind,
		"owner", ev.Owner,
		"phase", ev.Phase,
		"message", ev.Message,
		"payload", ev.Payload,
	)
}

// Recorder emits events into run state and fans each recorded event out to
// its observers.
type Recorder struct {
	owner     string
	observers []Observer
}

// NewRecorder creates a Recorder that tags events with owner.
func NewRecorder(owner string, observers ...Observer) *Recorder {
	return &Recorder{owner: owner, observers: observers}
}

// WithOwner returns a Recorder sharing the observers but tagging events with
// owner.
func (r *Recorder) WithOwner(owner string) *Recorder {
	return &Recorder{owner: owner, observers: r.observers}
}

// Emit records one event and notifies observers. Observers are not notified
// when the event is rejected.
func (r *Recorder) Emit(
	ctx context.Context,
	s state.State,
	kind dto.EventKind,
	phase, message string,
	payload map[string]any,
) (state.State, error) {
	ev, err := dto.NewTraceEvent(kind, payload)
	if err != nil {
		return s, err
	}
	ev = ev.WithOwner(r.owner).WithPhase(phase).WithMessage(message)

	next, err := Merge(s, ev)
	if err != nil {
		return s, err
	}

	for _, o := range r.observers {
		o.Observe(ctx, ev)
	}
	return next, nil
}
