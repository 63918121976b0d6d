package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// csvHandler writes `time;name;level;message` lines. Attributes are folded
// into the message as key=value pairs so the column count never changes.
type csvHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	name   string
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

func newCSVHandler(w io.Writer, opts Options) *csvHandler {
	return &csvHandler{
		mu:    &sync.Mutex{},
		w:     w,
		name:  opts.Name,
		level: opts.Level,
	}
}

func (h *csvHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *csvHandler) Handle(_ context.Context, r slog.Record) error {
	var msg strings.Builder
	msg.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&msg, "", a)
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&msg, prefix, a)
		return true
	})

	line := fmt.Sprintf(
		"%s;%s;%s;%s\n",
		r.Time.Format(TimeLayout),
		h.name,
		levelName(r.Level),
		sanitize(msg.String()),
	)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line)
	return err
}

func (h *csvHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	prefix := strings.Join(h.groups, ".")
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *csvHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, inner := range a.Value.Group() {
			writeAttr(b, key, inner)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(a.Value.String())
}

// the delimiter and line breaks inside a message would shift columns
var csvSanitizer = strings.NewReplacer(";", ",", "\n", " ", "\r", " ")

func sanitize(s string) string {
	return csvSanitizer.Replace(s)
}
