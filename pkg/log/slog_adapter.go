package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger. Traffic and state
// changes are logged at debug level, error events at warn level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter for the given logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	level := slog.LevelDebug
	if event.Error != nil {
		level = slog.LevelWarn
	}
	ctx := context.Background()
	if !a.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, 12)
	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("conn_id", event.ConnectionID))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}
	attrs = append(attrs,
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	)
	if event.Direction != DirectionNone {
		attrs = append(attrs, slog.String("direction", event.Direction.String()))
	}

	switch {
	case event.Frame != nil:
		attrs = frameAttrs(attrs, event.Frame)
	case event.Message != nil:
		attrs = messageAttrs(attrs, event.Message)
	case event.StateChange != nil:
		attrs = stateAttrs(attrs, event.StateChange)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("during", event.Error.Context))
		}
	}

	a.logger.LogAttrs(ctx, level, "protocol", attrs...)
}

func frameAttrs(attrs []slog.Attr, f *FrameEvent) []slog.Attr {
	attrs = append(attrs, slog.Int("frame_size", f.Size), slog.String("line", string(f.Data)))
	if f.Truncated {
		attrs = append(attrs, slog.Bool("truncated", true))
	}
	return attrs
}

func messageAttrs(attrs []slog.Attr, m *MessageEvent) []slog.Attr {
	attrs = append(attrs, slog.String("frame_type", m.Type.String()))
	if m.Key != "" {
		attrs = append(attrs, slog.String("key", m.Key))
	}
	if m.Value != "" {
		attrs = append(attrs, slog.String("value", m.Value))
	}
	if m.Status != nil {
		attrs = append(attrs, slog.String("status", m.Status.String()))
	}
	if m.Unsolicited {
		attrs = append(attrs, slog.Bool("unsolicited", true))
	}
	if m.RoundTrip != nil {
		attrs = append(attrs, slog.Duration("round_trip", *m.RoundTrip))
	}
	return attrs
}

func stateAttrs(attrs []slog.Attr, sc *StateChangeEvent) []slog.Attr {
	attrs = append(attrs, slog.String("entity", sc.Entity.String()))
	if sc.OldState != "" {
		attrs = append(attrs, slog.String("from", sc.OldState))
	}
	attrs = append(attrs, slog.String("to", sc.NewState))
	if sc.Reason != "" {
		attrs = append(attrs, slog.String("reason", sc.Reason))
	}
	return attrs
}

var _ Logger = (*SlogAdapter)(nil)
