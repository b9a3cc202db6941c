package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu   sync.Mutex
	log  *logrus.Logger
	// file backing the current logger, closed when Init replaces it
	file *os.File
)

// Init configures the shared logger. An unknown level falls back to info.
// A log file opened by an earlier Init is closed once the new logger is in
// place.
func Init(level, logFile string, console bool) error {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	var writers []io.Writer
	var opened *os.File
	if console {
		writers = append(writers, os.Stderr)
	}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		writers = append(writers, f)
		opened = f
	}
	switch len(writers) {
	case 0:
		l.SetOutput(io.Discard)
	case 1:
		l.SetOutput(writers[0])
	default:
		l.SetOutput(io.MultiWriter(writers...))
	}

	mu.Lock()
	prev := file
	log, file = l, opened
	mu.Unlock()
	if prev != nil {
		return prev.Close()
	}
	return nil
}

// Get returns the logger instance
func Get() *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}

// For returns an entry tagged with the component name
func For(component string) *logrus.Entry {
	return Get().WithField("component", component)
}

// SetOutput redirects the shared logger, mainly for tests
func SetOutput(w io.Writer) {
	Get().SetOutput(w)
}

// SetLevel changes the level of the shared logger
func SetLevel(level logrus.Level) {
	Get().SetLevel(level)
}
