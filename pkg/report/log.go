package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Level of a log entry
type Level string

const (
	Info    Level = "INFO"
	Warning Level = "WARNING"
	Error   Level = "ERROR"
)

// Entry is one line of a run log
type Entry struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}

// Log is an append-only list of entries. Operations return their own Log and
// callers merge them; nothing is shared.
type Log struct {
	Entries []Entry `json:"entries"`
	now     func() time.Time
}

func (l *Log) add(level Level, format string, args ...any) {
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	l.Entries = append(l.Entries, Entry{Time: now(), Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *Log) Infof(format string, args ...any)  { l.add(Info, format, args...) }
func (l *Log) Warnf(format string, args ...any)  { l.add(Warning, format, args...) }
func (l *Log) Errorf(format string, args ...any) { l.add(Error, format, args...) }

// Append adds all of other's entries after l's
func (l *Log) Append(other Log) {
	l.Entries = append(l.Entries, other.Entries...)
}

// Messages returns the bare messages in order
func (l Log) Messages() []string {
	out := make([]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		out = append(out, e.Message)
	}
	return out
}

// HasErrors reports any ERROR entry
func (l Log) HasErrors() bool {
	for _, e := range l.Entries {
		if e.Level == Error {
			return true
		}
	}
	return false
}

// Text renders the plain text report
func Text(title string, l Log, files []string) string {
	var sb strings.Builder
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", len(title)) + "\n\n")
	for _, e := range l.Entries {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", e.Time.Format(time.DateTime), e.Level, e.Message)
	}
	if len(files) > 0 {
		sb.WriteString("\nFiles:\n")
		for _, f := range files {
			fmt.Fprintf(&sb, "  - %s\n", f)
		}
	}
	return sb.String()
}

// WriteText writes the plain text report to path
func WriteText(path, title string, l Log, files []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(Text(title, l, files)), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
