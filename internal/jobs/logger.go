package jobs

import "go.uber.org/zap"

// jobLogger wraps zap.SugaredLogger with scheduler lifecycle helpers,
// following the engine's convention of using distinct levels so
// opening/closing events stand out visually in terminal output.
type jobLogger struct {
	*zap.SugaredLogger
}

// Starting logs a scheduler or worker startup event.
func (l jobLogger) Starting(msg string, keysAndValues ...interface{}) {
	l.Debugw("starting: "+msg, keysAndValues...)
}

// Closing logs a scheduler or worker shutdown event.
func (l jobLogger) Closing(msg string, keysAndValues ...interface{}) {
	l.Warnw("closing: "+msg, keysAndValues...)
}

// Pulse logs a general scheduler operation.
func (l jobLogger) Pulse(msg string, keysAndValues ...interface{}) {
	l.Infow(msg, keysAndValues...)
}
