// Package logger provides the process-wide leveled logger used by every
// runner. Nothing in this package, and no call site feeding it, ever
// receives secret material; elevation code passes commands and users only.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"

	"github.com/csd-dev-tools/runcommands/common"
)

// Log is the global logger instance.
var Log *RunLog

// defaultMaxFieldLength caps rendered field values, keeping long command
// lines from swamping the log.
const defaultMaxFieldLength = 256

// RunLog wraps *logrus.Logger for application-specific logging.
type RunLog struct {
	*logrus.Logger
}

func init() {
	// A usable console logger before InitGlobalLogger runs, so early
	// call sites never hit a nil Log.
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&Formatter{
		TimestampFormat:        "15:04:05",
		DisplayLevelName:       ShowAboveWarn,
		DisableCaller:          true,
		FieldsDisplayWithOrder: defaultFieldOrder(),
		MaxFieldValueLength:    defaultMaxFieldLength,
	})
	logger.SetOutput(os.Stdout)
	Log = &RunLog{Logger: logger}
}

func defaultFieldOrder() []string {
	return []string{
		common.LogFieldRunner, common.LogFieldRunID, common.LogFieldCmd, common.LogFieldPid,
	}
}

// InitGlobalLogger (re)configures the global Log. When outputPath is
// non-empty, entries are written to a daily-rotated file under it;
// otherwise they go to stdout.
func InitGlobalLogger(outputPath string, verbose bool, defaultLevel logrus.Level) error {
	logger := logrus.New()

	currentLogLevel := defaultLevel
	if verbose {
		currentLogLevel = logrus.DebugLevel
	}
	logger.SetLevel(currentLogLevel)

	displayLevel := ShowAboveWarn
	if verbose {
		displayLevel = ShowAll
	}

	if outputPath != "" {
		if err := os.MkdirAll(outputPath, 0755); err != nil {
			return fmt.Errorf("failed to create log output directory %s: %w", outputPath, err)
		}
		logFilePath := filepath.Join(outputPath, common.AppName+".log")

		writer, err := rotatelogs.New(
			logFilePath+".%Y%m%d", // Daily rotation
			rotatelogs.WithLinkName(logFilePath),
			rotatelogs.WithMaxAge(7*24*time.Hour),
			rotatelogs.WithRotationTime(24*time.Hour),
		)
		if err != nil {
			return fmt.Errorf("failed to initialize rotatelogs for %s: %w", logFilePath, err)
		}

		logger.SetReportCaller(true)
		fileFormatter := &Formatter{
			TimestampFormat:        "2006-01-02 15:04:05.000 MST",
			NoColors:               true,
			DisplayLevelName:       displayLevel,
			FieldsDisplayWithOrder: defaultFieldOrder(),
			MaxFieldValueLength:    defaultMaxFieldLength,
			CustomCallerFormatter: func(frame *runtime.Frame) string {
				return fmt.Sprintf(" [%s:%d %s]", filepath.Base(frame.File), frame.Line, filepath.Base(frame.Function))
			},
		}
		logger.SetFormatter(fileFormatter)

		logWriters := lfshook.WriterMap{}
		for _, level := range logrus.AllLevels {
			if logger.IsLevelEnabled(level) {
				logWriters[level] = writer
			}
		}
		if len(logWriters) > 0 {
			logger.Hooks.Add(lfshook.NewHook(logWriters, fileFormatter))
			// File logging goes through the hook; discard the default
			// stream so entries are not duplicated.
			logger.SetOutput(io.Discard)
		}
	} else {
		logger.SetFormatter(&Formatter{
			TimestampFormat:        "15:04:05",
			DisplayLevelName:       displayLevel,
			DisableCaller:          true,
			FieldsDisplayWithOrder: defaultFieldOrder(),
			MaxFieldValueLength:    defaultMaxFieldLength,
		})
		logger.SetOutput(os.Stdout)
	}

	Log = &RunLog{Logger: logger}
	return nil
}

// NewRunLog creates an independent logger instance, used by tests that
// need to capture output without touching the global Log.
func NewRunLog(out io.Writer, level logrus.Level) *RunLog {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(out)
	logger.SetFormatter(&Formatter{
		NoColors:               true,
		DisplayLevelName:       ShowAll,
		DisableCaller:          true,
		FieldsDisplayWithOrder: defaultFieldOrder(),
	})
	return &RunLog{Logger: logger}
}

// ForRunner returns an entry carrying the runner name, used as the base
// entry for all of one runner's log lines.
func (rl *RunLog) ForRunner(runnerName string) *logrus.Entry {
	return rl.WithField(common.LogFieldRunner, runnerName)
}

// ForRun returns an entry carrying the runner name, a correlation id and
// the printable command of one run.
func (rl *RunLog) ForRun(runnerName, runID, printableCmd string) *logrus.Entry {
	return rl.WithFields(logrus.Fields{
		common.LogFieldRunner: runnerName,
		common.LogFieldRunID:  runID,
		common.LogFieldCmd:    printableCmd,
	})
}
