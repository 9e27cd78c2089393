// Package rlog is the ambient diagnostics logger for the optimizer and
// driver. It is deliberately small: the core only ever needs one-time
// fallback warnings, job summaries and GA progress lines, never the full
// file-rotation/channel machinery a server-wide logging framework provides
// (that belongs to the host application, per the core's external-collaborator
// boundary).
//
// The API shape — context-carrying, severity-leveled, redaction-aware
// formatting — follows github.com/cockroachdb/cockroach's pkg/util/log.
package rlog

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
)

// Severity mirrors the small set of levels the core actually emits at.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "W"
	case SeverityError:
		return "E"
	default:
		return "I"
	}
}

// ctxTagsKey is the context key under which a *logtags.Buffer travels with
// a request, propagating job/task identifiers without threading them
// through every call signature.
type ctxTagsKeyT struct{}

var ctxTagsKey = ctxTagsKeyT{}

// WithTags returns a context carrying an additional tag (e.g. "job", jobID).
func WithTags(ctx context.Context, key string, value interface{}) context.Context {
	buf, _ := ctx.Value(ctxTagsKey).(*logtags.Buffer)
	buf = buf.Add(key, value)
	return context.WithValue(ctx, ctxTagsKey, buf)
}

// Logger writes severity-leveled, context-tagged lines to an underlying
// writer. The zero value writes to os.Stderr.
type Logger struct {
	mu  sync.Mutex
	out io.Writer
}

// Default is the package-level logger used by the free functions below. It
// is a value, not a hidden global singleton carried implicitly through
// calls — callers that need isolation construct their own *Logger.
var Default = &Logger{out: os.Stderr}

func (l *Logger) writer() io.Writer {
	if l.out == nil {
		return os.Stderr
	}
	return l.out
}

// SetOutput redirects where this logger writes; used by tests to capture
// output and by the CLI to redirect to a file.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

func (l *Logger) logf(ctx context.Context, sev Severity, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := redact.Sprintf(format, args...)
	tags := ""
	if buf, ok := ctx.Value(ctxTagsKey).(*logtags.Buffer); ok && buf != nil {
		tags = "[" + buf.String() + "] "
	}
	fmt.Fprintf(l.writer(), "%s %s%s\n", sev, tags, msg.Redact())
}

func (l *Logger) Infof(ctx context.Context, format string, args ...interface{}) {
	l.logf(ctx, SeverityInfo, format, args...)
}

func (l *Logger) Warningf(ctx context.Context, format string, args ...interface{}) {
	l.logf(ctx, SeverityWarning, format, args...)
}

func (l *Logger) Errorf(ctx context.Context, format string, args ...interface{}) {
	l.logf(ctx, SeverityError, format, args...)
}

// Infof/Warningf/Errorf on the default logger.
func Infof(ctx context.Context, format string, args ...interface{}) {
	Default.Infof(ctx, format, args...)
}

func Warningf(ctx context.Context, format string, args ...interface{}) {
	Default.Warningf(ctx, format, args...)
}

func Errorf(ctx context.Context, format string, args ...interface{}) {
	Default.Errorf(ctx, format, args...)
}

// OnceWarner emits a given warning message at most once per key, used for
// "missing estimator, falling back" diagnostics that would otherwise flood
// the log once per push traversal.
type OnceWarner struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewOnceWarner() *OnceWarner {
	return &OnceWarner{seen: make(map[string]struct{})}
}

func (w *OnceWarner) Warn(ctx context.Context, key string, format string, args ...interface{}) {
	w.mu.Lock()
	_, already := w.seen[key]
	if !already {
		w.seen[key] = struct{}{}
	}
	w.mu.Unlock()
	if !already {
		Warningf(ctx, format, args...)
	}
}
