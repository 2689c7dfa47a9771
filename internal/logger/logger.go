package logger

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns the logger used across peer-dial. Debug output is enabled
// through the PEER_DIAL_DEBUG environment variable.
func New() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.TimeOnly,
	})
	if os.Getenv("PEER_DIAL_DEBUG") != "" {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
