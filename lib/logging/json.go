package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
)

// jsonHandler writes objects starting with time, name, level and message,
// in that order. Attributes follow, encoded by slog's JSON handler.
type jsonHandler struct {
	mu    *sync.Mutex
	buf   *bytes.Buffer
	w     io.Writer
	name  string
	level slog.Leveler
	attrs slog.Handler
}

func newJSONHandler(w io.Writer, opts Options) *jsonHandler {
	buf := &bytes.Buffer{}
	return &jsonHandler{
		mu:    &sync.Mutex{},
		buf:   buf,
		w:     w,
		name:  opts.Name,
		level: opts.Level,
		attrs: slog.NewJSONHandler(buf, &slog.HandlerOptions{
			Level: slog.LevelDebug - 4,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if len(groups) == 0 {
					switch a.Key {
					case slog.TimeKey, slog.LevelKey, slog.MessageKey:
						return slog.Attr{}
					}
				}
				return a
			},
		}),
	}
}

func (h *jsonHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *jsonHandler) Handle(ctx context.Context, r slog.Record) error {
	var head bytes.Buffer
	head.WriteString(`{"time":`)
	writeJSONString(&head, r.Time.Format(TimeLayout))
	head.WriteString(`,"name":`)
	writeJSONString(&head, h.name)
	head.WriteString(`,"level":`)
	writeJSONString(&head, levelName(r.Level))
	head.WriteString(`,"message":`)
	writeJSONString(&head, r.Message)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf.Reset()
	if err := h.attrs.Handle(ctx, r); err != nil {
		return err
	}
	// the attribute handler wrote `{...}\n`, splice its fields after the head
	rest := bytes.TrimSpace(h.buf.Bytes())
	if len(rest) > 2 {
		head.WriteByte(',')
		head.Write(rest[1:])
	} else {
		head.WriteByte('}')
	}
	head.WriteByte('\n')
	_, err := h.w.Write(head.Bytes())
	return err
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = h.attrs.WithAttrs(attrs)
	return &next
}

func (h *jsonHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.attrs = h.attrs.WithGroup(name)
	return &next
}

func writeJSONString(b *bytes.Buffer, s string) {
	encoded, _ := json.Marshal(s)
	b.Write(encoded)
}
