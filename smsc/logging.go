package smsc

import "github.com/sirupsen/logrus"

// Logger is the same shape as the ESME-side smpp.Logger interface,
// kept as its own type here so the smsc package doesn't need to import
// the client engine just to log.
type Logger interface {
	InfoF(msg string, params ...interface{})
	ErrorF(msg string, params ...interface{})
}

// LogrusLogger adapts a *logrus.Logger to Logger.
type LogrusLogger struct {
	L *logrus.Logger
}

// NewLogrusLogger builds a Logger backed by a text-formatted logrus
// logger writing to its default output.
func NewLogrusLogger(level logrus.Level) *LogrusLogger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &LogrusLogger{L: l}
}

// InfoF implements Logger.
func (l *LogrusLogger) InfoF(msg string, params ...interface{}) {
	l.L.Infof(msg, params...)
}

// ErrorF implements Logger.
func (l *LogrusLogger) ErrorF(msg string, params ...interface{}) {
	l.L.Errorf(msg, params...)
}
