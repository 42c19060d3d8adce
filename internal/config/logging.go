package config

import (
    "os"
    "strings"

    "github.com/sirupsen/logrus"
)

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT values.
// Unknown levels fall back to info.
func NewLogger(level, format string) *logrus.Logger {
    l := logrus.New()
    l.SetOutput(os.Stdout)
    lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
    if err != nil {
        lvl = logrus.InfoLevel
    }
    l.SetLevel(lvl)
    if strings.EqualFold(format, "json") {
        l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
    } else {
        l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
    }
    return l
}
