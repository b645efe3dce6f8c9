package program

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Exit codes of programs launched through RunMain().
const (
	ExitCodeSuccess = 0
	ExitCodeFailure = 1
	// ExitCodeDataLoss is used if a routine fails with DATA_LOSS,
	// e.g. because a stress test observed a torn value. This allows
	// scripts to distinguish it from misconfiguration.
	ExitCodeDataLoss = 2
)

func exitCodeForError(err error) int {
	if status.Code(err) == codes.DataLoss {
		return ExitCodeDataLoss
	}
	return ExitCodeFailure
}

// runMainErrorLogger is used by RunMain() to capture errors returned by
// routines. Each error is logged, and the first one initiates
// shutdown. The exit code of the process is determined by whichever
// event initiated shutdown.
type runMainErrorLogger struct {
	shutdownStarted sync.Once
	exit            func()
	cancel          context.CancelCauseFunc
}

func (el *runMainErrorLogger) Log(err error) {
	log.Print("Fatal error: ", err)
	exitCode := exitCodeForError(err)
	el.startShutdown(err, func() {
		os.Exit(exitCode)
	})
}

func (el *runMainErrorLogger) startShutdown(cause error, exit func()) {
	el.shutdownStarted.Do(func() {
		el.exit = exit
		el.cancel(cause)
	})
}

// raiseSignal terminates the current process by sending it the signal
// that initiated shutdown, so that the parent process observes the
// same termination status as if no signal handler was installed.
func raiseSignal(terminationSignal os.Signal) {
	if runtime.GOOS == "windows" {
		// process.Signal() is not supported.
		os.Exit(ExitCodeFailure)
	}

	signal.Reset(terminationSignal)
	process, err := os.FindProcess(os.Getpid())
	if err != nil {
		panic(err)
	}
	if err := process.Signal(terminationSignal); err != nil {
		panic(err)
	}

	// Delivery of the signal is asynchronous, and it may not be
	// delivered at all if it is ignored through the process group.
	// See https://github.com/golang/go/issues/19326 and
	// https://github.com/golang/go/issues/46321.
	time.Sleep(100 * time.Millisecond)
	os.Exit(ExitCodeFailure)
}

// RunMain runs a program that supports graceful termination. Programs
// consist of a pool of routines that may have dependencies on each
// other. Programs terminate if one of the following three cases occur:
//
//   - The root routine and all of its siblings have terminated. In that
//     case the program terminates with ExitCodeSuccess.
//
//   - One of the routines fails with a non-nil error. In that case the
//     program terminates with ExitCodeDataLoss or ExitCodeFailure,
//     depending on the code of the error.
//
//   - The program receives SIGINT or SIGTERM. In that case the program
//     will terminate with that signal.
//
// In case termination occurs, all remaining routines are canceled,
// respecting dependencies between these routines. This can for example
// be used to ensure a diagnostics web server keeps on serving metrics
// until all workers have stopped.
func RunMain(routine Routine) {
	ctx, cancel := context.WithCancelCause(context.Background())
	errorLogger := &runMainErrorLogger{
		cancel: cancel,
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		receivedSignal := <-signalChan
		log.Printf("Received %#v signal. Initiating graceful shutdown.", receivedSignal.String())
		errorLogger.startShutdown(
			status.Errorf(codes.Canceled, "Received %s signal", receivedSignal),
			func() {
				raiseSignal(receivedSignal)
			})
	}()

	// Launch the initial routine and any goroutines that it spawns.
	run(ctx, errorLogger, routine)

	// If none of the routines failed and we didn't get signalled,
	// terminate successfully.
	errorLogger.startShutdown(context.Canceled, func() {
		os.Exit(ExitCodeSuccess)
	})
	errorLogger.exit()
}
