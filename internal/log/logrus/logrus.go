// Package logrus implements the Planora logging interface on top of
// sirupsen/logrus.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/planora/planora/internal/log"
)

type logger struct {
	*logrus.Entry
}

// NewLogrus returns a log.Logger backed by the given logrus entry.
func NewLogrus(entry *logrus.Entry) log.Logger {
	return logger{Entry: entry}
}

func (l logger) WithValues(values log.Kv) log.Logger {
	return logger{Entry: l.Entry.WithFields(logrus.Fields(values))}
}
