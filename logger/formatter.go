package logger

import (
	"bytes"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/csd-dev-tools/runcommands/util"
)

const defaultTimestampFormat = time.RFC3339

// LevelNameDisplayMode defines how log level names are displayed.
type LevelNameDisplayMode int

const (
	// ShowAll shows all level names.
	ShowAll LevelNameDisplayMode = iota
	// ShowAboveWarn shows level names for WARN, ERROR, FATAL, PANIC.
	ShowAboveWarn
	// ShowAboveError shows level names for ERROR, FATAL, PANIC.
	ShowAboveError
	// HideAll hides all level names.
	HideAll
)

// Formatter implements logrus.Formatter with ordered fields and optional
// ANSI colors, tuned for run logs where the command and run id come first.
type Formatter struct {
	// TimestampFormat specifies the format of the timestamp. Default: time.RFC3339.
	TimestampFormat string
	// NoColors disables colorized output.
	NoColors bool
	// DisableTimestamp disables timestamp output.
	DisableTimestamp bool
	// DisplayLevelName configures which level names are printed.
	DisplayLevelName LevelNameDisplayMode
	// HideKeys hides field keys, showing only field values.
	HideKeys bool
	// FieldsDisplayWithOrder lists field keys to display first, in order.
	// Remaining fields are appended alphabetically.
	FieldsDisplayWithOrder []string
	// DisableCaller disables caller information output.
	DisableCaller bool
	// CustomCallerFormatter overrides the default caller format.
	CustomCallerFormatter func(*runtime.Frame) string
	// MaxFieldValueLength truncates long field values. 0 means no limit.
	MaxFieldValueLength int
}

// Format formats the log entry.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := &bytes.Buffer{}

	if !f.DisableTimestamp {
		format := f.TimestampFormat
		if format == "" {
			format = defaultTimestampFormat
		}
		b.WriteString(entry.Time.Format(format))
		b.WriteString(" ")
	}

	levelColor := f.colorFor(entry.Level)
	if f.showLevel(entry.Level) {
		if levelColor > 0 {
			fmt.Fprintf(b, "\x1b[%dm", levelColor)
		}
		b.WriteString("[")
		b.WriteString(strings.ToUpper(entry.Level.String()))
		b.WriteString("]")
		if levelColor > 0 {
			b.WriteString("\x1b[0m")
		}
		b.WriteString(" ")
	}

	f.writeFields(b, entry)

	b.WriteString(entry.Message)

	if !f.DisableCaller && entry.HasCaller() {
		b.WriteString(f.formatCaller(entry.Caller))
	}

	b.WriteString("\n")
	return b.Bytes(), nil
}

func (f *Formatter) showLevel(level logrus.Level) bool {
	switch f.DisplayLevelName {
	case ShowAll:
		return true
	case ShowAboveWarn:
		return level <= logrus.WarnLevel
	case ShowAboveError:
		return level <= logrus.ErrorLevel
	default:
		return false
	}
}

func (f *Formatter) colorFor(level logrus.Level) int {
	if f.NoColors {
		return 0
	}
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return 36 // cyan
	case logrus.WarnLevel:
		return 33 // yellow
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return 31 // red
	default:
		return 0
	}
}

func (f *Formatter) writeFields(b *bytes.Buffer, entry *logrus.Entry) {
	if len(entry.Data) == 0 {
		return
	}

	written := map[string]bool{}
	for _, key := range f.FieldsDisplayWithOrder {
		if value, ok := entry.Data[key]; ok {
			f.writeField(b, key, value)
			written[key] = true
		}
	}

	remaining := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		if !written[key] {
			remaining = append(remaining, key)
		}
	}
	sort.Strings(remaining)
	for _, key := range remaining {
		f.writeField(b, key, entry.Data[key])
	}
}

func (f *Formatter) writeField(b *bytes.Buffer, key string, value interface{}) {
	rendered := util.TruncateString(fmt.Sprintf("%v", value), f.MaxFieldValueLength, "...")
	if f.HideKeys {
		fmt.Fprintf(b, "[%s] ", rendered)
	} else {
		fmt.Fprintf(b, "[%s:%s] ", key, rendered)
	}
}

func (f *Formatter) formatCaller(frame *runtime.Frame) string {
	if f.CustomCallerFormatter != nil {
		return f.CustomCallerFormatter(frame)
	}
	return fmt.Sprintf(" (%s:%d)", filepath.Base(frame.File), frame.Line)
}
