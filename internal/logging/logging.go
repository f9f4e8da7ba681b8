package logging

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/NGarate/webdav-backup/internal/config"
)

// New creates a logger configured for the given verbosity, writing to out.
// The command passes the progress tracker's LogWriter as out, so log lines
// clear and redraw the bar while it is active and pass through otherwise.
func New(verbosity config.Verbosity, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    true,
	})

	switch verbosity {
	case config.VerbosityQuiet:
		log.SetLevel(logrus.ErrorLevel)
	case config.VerbosityVerbose:
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}
