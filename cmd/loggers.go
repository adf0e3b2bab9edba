package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/contextlang/pkg/config"
	"github.com/sirupsen/logrus"
)

const (
	logDir         = "Context_Logs"
	configFileHint = config.ConfigFileName + " and .env"
)

// app carries the state shared by every command of one invocation.
type app struct {
	logger    *logrus.Logger
	debug     bool
	logToFile bool
	configDir string
	logFile   io.Closer
}

func newApp() *app {
	return &app{logger: logrus.New(), configDir: "."}
}

// setupLogging configures the logger from the persistent flags. With --log the
// output goes to Context_Logs/context_log_<DD_MM_YYYY_HH_MM_SS>.txt.
func (a *app) setupLogging(stderr io.Writer) error {
	a.logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	a.logger.SetOutput(stderr)
	if a.debug {
		a.logger.SetLevel(logrus.DebugLevel)
	} else {
		a.logger.SetLevel(logrus.InfoLevel)
	}
	if !a.logToFile {
		return nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(logDir, logFileName(time.Now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	a.logFile = f
	a.logger.SetOutput(f)
	a.logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	return nil
}

func logFileName(t time.Time) string {
	return "context_log_" + t.Format("02_01_2006_15_04_05") + ".txt"
}

func (a *app) close() {
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}
