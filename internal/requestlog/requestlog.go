// Package requestlog keeps the in-session record of provider traffic shown in
// the log viewer and exported to a text file.
package requestlog

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultExportName is the suggested file name for Export.
const DefaultExportName = "NoGoLogo_API_Log.txt"

const timeLayout = "2006-01-02 15:04:05"

type Category string

const (
	CategoryInfo     Category = "info"
	CategoryRequest  Category = "request"
	CategoryResponse Category = "response"
	CategoryError    Category = "error"
	CategoryWarning  Category = "warning"
)

type Entry struct {
	Time     time.Time
	Category Category
	Message  string
}

func (e Entry) String() string {
	return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(e.Category)), e.Time.Format(timeLayout), e.Message)
}

// Log is append-only and unbounded. It is safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	logger  zerolog.Logger
	now     func() time.Time
}

func New(logger zerolog.Logger) *Log {
	return &Log{
		logger: logger,
		now:    time.Now,
	}
}

func (l *Log) Append(category Category, message string) {
	entry := Entry{Time: l.now(), Category: category, Message: message}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	l.mirror(entry)
}

func (l *Log) Appendf(category Category, format string, args ...any) {
	l.Append(category, fmt.Sprintf(format, args...))
}

// All returns a copy of the entries in insertion order.
func (l *Log) All() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Formatted renders every entry as "[CATEGORY] timestamp: message",
// separated by blank lines.
func (l *Log) Formatted() string {
	entries := l.All()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n\n")
}

func (l *Log) Export(path string) error {
	if err := os.WriteFile(path, []byte(l.Formatted()), 0644); err != nil {
		return fmt.Errorf("failed to export request log: %w", err)
	}
	return nil
}

func (l *Log) mirror(e Entry) {
	var ev *zerolog.Event
	switch e.Category {
	case CategoryError:
		ev = l.logger.Error()
	case CategoryWarning:
		ev = l.logger.Warn()
	case CategoryRequest, CategoryResponse:
		ev = l.logger.Debug()
	default:
		ev = l.logger.Info()
	}
	ev.Str("category", string(e.Category)).Msg(e.Message)
}
