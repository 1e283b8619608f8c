package bulk

import (
	"log/slog"
	"sync"
	"time"
)

// Level of an action log entry
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// LogEntry is one line of the action log
type LogEntry struct {
	Time        time.Time `json:"time"`
	Level       Level     `json:"level"`
	Participant string    `json:"participant,omitempty"`
	Message     string    `json:"message"`
	Err         error     `json:"-"`
}

// Error returns the error text, if any
func (e LogEntry) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// ActionLog is the ordered, timestamped log of one import. Entries are
// mirrored to the structured logger.
type ActionLog struct {
	mu      sync.Mutex
	entries []LogEntry
	logger  *slog.Logger
	now     func() time.Time
}

func newActionLog(logger *slog.Logger, now func() time.Time) *ActionLog {
	return &ActionLog{logger: logger, now: now}
}

func (l *ActionLog) add(level Level, participant, msg string, err error) {
	l.mu.Lock()
	l.entries = append(l.entries, LogEntry{
		Time:        l.now(),
		Level:       level,
		Participant: participant,
		Message:     msg,
		Err:         err,
	})
	l.mu.Unlock()

	attrs := []any{"participant", participant}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	switch level {
	case LevelError:
		l.logger.Error(msg, attrs...)
	case LevelWarning:
		l.logger.Warn(msg, attrs...)
	default:
		l.logger.Info(msg, attrs...)
	}
}

func (l *ActionLog) info(participant, msg string) { l.add(LevelInfo, participant, msg, nil) }
func (l *ActionLog) warn(participant, msg string) { l.add(LevelWarning, participant, msg, nil) }
func (l *ActionLog) success(participant, msg string) {
	l.add(LevelSuccess, participant, msg, nil)
}
func (l *ActionLog) error(participant, msg string, err error) {
	l.add(LevelError, participant, msg, err)
}

// Entries returns a copy of the log in insertion order
func (l *ActionLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), l.entries...)
}

// Count returns the number of entries with level
func (l *ActionLog) Count(level Level) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
