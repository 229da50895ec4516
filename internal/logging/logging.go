// Package logging configures the process-wide structured logger and the
// colorized stage banners used by the CLI. It replaces eutils' plain
// log.Printf/fmt.Fprintf(os.Stderr, ...) diagnostics with logrus while
// keeping the teacher's practice of a short banner line per stage, now
// colorized with fatih/color instead of raw escape codes.
package logging

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// New builds the shared logger. If logDir is non-empty, a second handler
// writes the same records to a timestamped file under logDir, mirroring
// pubget's _add_log_file behavior of adding a file handler only when a log
// directory was configured.
func New(logDir string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logrus.InfoLevel)

	if logDir == "" {
		return logger
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		logger.WithError(err).Warn("could not create log directory")
		return logger
	}
	name := filepath.Join(logDir, "pmcpipeline_log_"+time.Now().Format("20060102T150405")+"_"+strconv.Itoa(os.Getpid()))
	f, err := os.Create(name)
	if err != nil {
		logger.WithError(err).Warn("could not create log file")
		return logger
	}
	logger.AddHook(&fileHook{file: f, formatter: &logrus.TextFormatter{FullTimestamp: true}})
	return logger
}

type fileHook struct {
	file      *os.File
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(e *logrus.Entry) error {
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.file.Write(b)
	return err
}

// Banner prints a colorized stage banner the way the teacher's CLI tools
// announce a phase before running it.
func Banner(stage string) {
	color.New(color.FgCyan, color.Bold).Printf("== %s ==\n", stage)
}
