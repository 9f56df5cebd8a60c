package logger

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (debug/info/warning/error) to files and stdout/stderr.
type Logger struct {
	debugLog   *log.Logger
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	logDir     string
	files      []*os.File
	debug      bool
	mu         sync.Mutex
}

// NewLogger creates a Logger writing each level to the console and to its own file
// under logDir. The directory is created when missing.
func NewLogger(logDir string, debug bool) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create log directory")
	}

	logger := &Logger{
		logDir: logDir,
		debug:  debug,
	}

	if err := logger.setupLoggers(); err != nil {
		logger.Close()
		return nil, err
	}
	return logger, nil
}

// New creates a Logger that writes every level to w. Used by tools and tests.
func New(w io.Writer) *Logger {
	l := &Logger{debug: true}
	l.setWriters(w, w, w, w)
	return l
}

// setupLoggers opens the per-level files and wires writers.
func (l *Logger) setupLoggers() error {
	infoFileHandle, err := l.openLogFile(filepath.Join(l.logDir, InfoFile))
	if err != nil {
		return err
	}
	warningFileHandle, err := l.openLogFile(filepath.Join(l.logDir, WarningFile))
	if err != nil {
		return err
	}
	errorFileHandle, err := l.openLogFile(filepath.Join(l.logDir, ErrorFile))
	if err != nil {
		return err
	}

	infoWriter := io.MultiWriter(os.Stdout, infoFileHandle)
	warningWriter := io.MultiWriter(os.Stdout, warningFileHandle)
	errorWriter := io.MultiWriter(os.Stderr, errorFileHandle)

	l.setWriters(os.Stdout, infoWriter, warningWriter, errorWriter)
	return nil
}

func (l *Logger) setWriters(debug, info, warning, errw io.Writer) {
	l.debugLog = log.New(debug, "🔍 DEBUG   ", log.Ldate|log.Ltime|log.Lmicroseconds)
	l.infoLog = log.New(info, "ℹ️  INFO    ", log.Ldate|log.Ltime|log.Lmicroseconds)
	l.warningLog = log.New(warning, "⚠️  WARNING ", log.Ldate|log.Ltime|log.Lmicroseconds)
	l.errorLog = log.New(errw, "❌ ERROR   ", log.Ldate|log.Ltime|log.Lmicroseconds)
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) (*os.File, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open log file %s", filename)
	}
	l.files = append(l.files, file)
	return file, nil
}

// Debug writes a formatted debug-level log entry when debug logging is enabled.
func (l *Logger) Debug(format string, v ...interface{}) {
	if !l.debug {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugLog.Printf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Printf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Printf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Printf(format, v...)
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, fileName)
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "failed to truncate %s", fileName)
	}
	defer file.Close()

	l.Info("Log file %s has been cleared", fileName)
	return nil
}

// Dir returns the directory holding the log files, empty for writer-backed loggers.
func (l *Logger) Dir() string {
	return l.logDir
}

// Close releases the open log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
