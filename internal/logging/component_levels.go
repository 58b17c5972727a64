package logging

import (
	"context"
	"log/slog"
)

// componentLevelHandler clamps records to a per-component minimum level,
// falling back to a global minimum for components without an override. The
// component is picked up from WithAttrs, so loggers built through
// NewComponentLogger inherit their override automatically. The wrapped handler
// must be configured at the most verbose level any override needs, or louder
// overrides are filtered before they reach it.
type componentLevelHandler struct {
	next     slog.Handler
	levels   map[string]slog.Level
	fallback slog.Level
	current  slog.Level
}

func newComponentLevelHandler(next slog.Handler, levels map[string]slog.Level, fallback slog.Level) slog.Handler {
	if next == nil {
		return NoopHandler{}
	}
	return &componentLevelHandler{next: next, levels: levels, fallback: fallback, current: fallback}
}

func (h *componentLevelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.current
}

func (h *componentLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.current {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *componentLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	current := h.current
	for _, attr := range attrs {
		if attr.Key != FieldComponent {
			continue
		}
		if level, ok := h.levels[attr.Value.String()]; ok {
			current = level
		} else {
			current = h.fallback
		}
	}
	return &componentLevelHandler{
		next:     h.next.WithAttrs(attrs),
		levels:   h.levels,
		fallback: h.fallback,
		current:  current,
	}
}

func (h *componentLevelHandler) WithGroup(name string) slog.Handler {
	return &componentLevelHandler{
		next:     h.next.WithGroup(name),
		levels:   h.levels,
		fallback: h.fallback,
		current:  h.current,
	}
}

// WithComponentLevels returns a logger that applies per-component minimum
// levels on top of a global minimum. Pair it with a base logger built at
// MostVerboseLevel so overrides can raise verbosity as well as lower it.
func WithComponentLevels(logger *slog.Logger, overrides map[string]string, global string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if len(overrides) == 0 {
		return logger
	}
	levels := make(map[string]slog.Level, len(overrides))
	for component, level := range overrides {
		levels[component] = parseLevel(level)
	}
	return slog.New(newComponentLevelHandler(logger.Handler(), levels, parseLevel(global)))
}

// MostVerboseLevel returns the lowest level among the global level and all
// component overrides.
func MostVerboseLevel(global string, overrides map[string]string) slog.Level {
	most := parseLevel(global)
	for _, level := range overrides {
		if parsed := parseLevel(level); parsed < most {
			most = parsed
		}
	}
	return most
}

// LevelName renders a level as its configuration string.
func LevelName(level slog.Level) string {
	switch {
	case level <= slog.LevelDebug:
		return "debug"
	case level <= slog.LevelInfo:
		return "info"
	case level <= slog.LevelWarn:
		return "warn"
	default:
		return "error"
	}
}
