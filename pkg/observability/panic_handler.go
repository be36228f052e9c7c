package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the stack trace.
// It must be deferred directly:
//
//	defer observability.RecoverPanic(logger, "delivery status job")
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logPanic(logger, context, r)
	}
}

// RecoverPanicWithCallback recovers from a panic, logs it and then calls
// callback. The callback only runs when a panic occurred.
func RecoverPanicWithCallback(logger *Logger, context string, callback func(recovered interface{})) {
	if r := recover(); r != nil {
		logPanic(logger, context, r)
		if callback != nil {
			callback(r)
		}
	}
}

func logPanic(logger *Logger, context string, r interface{}) {
	if logger == nil {
		return
	}
	logger.WithField("panic", r).
		WithField("stack", string(debug.Stack())).
		WithField("context", context).
		Error("PANIC recovered")
}
