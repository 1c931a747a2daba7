package logger

import (
	"fmt"

	"github.com/pion/logging"
	"go.uber.org/zap"
)

// implements pion logging.LeveledLogger on top of the package logger
type logAdapter struct {
	logger *zap.SugaredLogger
}

func (l *logAdapter) Trace(msg string) {
	// ignore trace
}

func (l *logAdapter) Tracef(format string, args ...interface{}) {
	// ignore trace
}

func (l *logAdapter) Debug(msg string) {
	l.logger.Debug(msg)
}

func (l *logAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *logAdapter) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logAdapter) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *logAdapter) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logAdapter) Warnf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *logAdapter) Error(msg string) {
	l.logger.Error(msg)
}

func (l *logAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

type loggerFactory struct{}

func (f *loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &logAdapter{logger: defaultLogger.Named(scope)}
}

// LoggerFactory routes pion/webrtc and pion/ice logs through the
// package logger.
func LoggerFactory() logging.LoggerFactory {
	return &loggerFactory{}
}
