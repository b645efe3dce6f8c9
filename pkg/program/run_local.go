package program

import (
	"context"
	"sync"
)

// runLocalErrorLogger records the first error returned by any of the
// routines launched by RunLocal(), and cancels all others using that
// error as the cause.
type runLocalErrorLogger struct {
	once       sync.Once
	firstError error
	cancel     context.CancelCauseFunc
}

func (el *runLocalErrorLogger) Log(err error) {
	el.once.Do(func() {
		el.firstError = err
		el.cancel(err)
	})
}

// RunLocal runs a routine and all of the routines it spawns until
// completion, returning the first error returned by any of them. That
// error also cancels the context of all other routines, and is
// available to them through context.Cause().
//
// Unlike errgroup.Group, there is no separate Wait() function, and
// routines are placed in the same hierarchy of siblings and
// dependencies as with RunMain(). This allows tests and stress test
// runs to use the same routines as the program's main function.
func RunLocal(ctx context.Context, routine Routine) error {
	innerCtx, cancel := context.WithCancelCause(ctx)
	errorLogger := &runLocalErrorLogger{
		cancel: cancel,
	}
	run(innerCtx, errorLogger, routine)
	errorLogger.once.Do(func() {
		cancel(context.Canceled)
	})
	return errorLogger.firstError
}
