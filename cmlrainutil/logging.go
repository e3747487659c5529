package cmlrainutil

import (
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogging builds a *logrus.Logger honoring the `logging.init_level`
// configuration value, writing to logFile if set (rotated the same way
// the realtime scheduler's long-lived process log is, daily-sized and
// compressed after rollover) or to stderr otherwise.
func InitLogging(level, logFile string) *logrus.Logger {
	log := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	if logFile != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename: filepath.Clean(logFile),
			MaxSize:  64, // MB
			MaxAge:   14,
			Compress: true,
		})
	}
	return log
}
