package proc

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"vise/internal/logging"
	"vise/internal/services"
)

const (
	termGrace = time.Second
	intGrace  = 500 * time.Millisecond
	tailLines = 20
)

// Outcome classifies how a supervised process finished.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Result is the single authoritative outcome of a supervised process.
// ExitCode is -1 when the process died on a signal.
type Result struct {
	Outcome  Outcome
	ExitCode int
	Err      error
}

// Handle supervises one spawned process. All methods are safe for
// concurrent use.
type Handle struct {
	cmd    *exec.Cmd
	pgid   int
	logger *slog.Logger

	// live is the process liveness flag shared with progress consumers.
	// It flips to false exactly once, when the outcome resolves.
	live            atomic.Bool
	cancelRequested atomic.Bool

	mu       sync.Mutex
	resolved bool
	result   Result
	tail     []string

	done chan struct{}
}

// Pid returns the process id, which doubles as the group id.
func (h *Handle) Pid() int {
	return h.pgid
}

// Running reports whether the process outcome is still unresolved.
func (h *Handle) Running() bool {
	return h.live.Load()
}

// CancelRequested reports whether any caller has asked for cancellation.
func (h *Handle) CancelRequested() bool {
	return h.cancelRequested.Load()
}

// Done closes once the outcome is resolved.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the process resolves and returns the outcome.
func (h *Handle) Wait() Result {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Result returns the outcome if resolved.
func (h *Handle) Result() (Result, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.resolved
}

// Cancel requests termination. Safe to call any number of times from any
// goroutine: the first call past the resolution gate starts the signal
// escalation, every other call is a no-op. A handle that already resolved
// keeps its outcome.
func (h *Handle) Cancel() {
	h.mu.Lock()
	first := !h.cancelRequested.Load() && !h.resolved
	if first {
		h.cancelRequested.Store(true)
	}
	h.mu.Unlock()
	if first {
		go h.escalate()
	}
}

// escalate walks the termination ladder, skipping ahead whenever the
// process exits on its own.
func (h *Handle) escalate() {
	if h.signalGroup(unix.SIGTERM) {
		return
	}
	if h.waitExit(termGrace) {
		return
	}
	if h.signalGroup(unix.SIGINT) {
		return
	}
	if h.waitExit(intGrace) {
		return
	}
	h.signalGroup(unix.SIGKILL)
}

// signalGroup delivers sig to the whole process group. Returns true when
// the group is already gone, making further escalation pointless.
func (h *Handle) signalGroup(sig unix.Signal) bool {
	if !h.live.Load() {
		return true
	}
	err := unix.Kill(-h.pgid, sig)
	if err != nil {
		if errors.Is(err, unix.ESRCH) {
			return true
		}
		h.logger.Debug("signal delivery failed",
			logging.String("signal", unix.SignalName(sig)),
			logging.Int("pgid", h.pgid),
			logging.Error(err))
		return false
	}
	h.logger.Debug("signalled process group",
		logging.String("signal", unix.SignalName(sig)),
		logging.Int("pgid", h.pgid))
	return false
}

func (h *Handle) waitExit(grace time.Duration) bool {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-h.done:
		return true
	case <-timer.C:
		return false
	}
}

// finish interprets the exit status. The cancellation override happens in
// resolve so the decision is made inside the same critical section that
// guards the one-shot cell.
func (h *Handle) finish(waitErr error) {
	if waitErr == nil {
		h.resolve(Result{Outcome: OutcomeSuccess})
		return
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	detail := fmt.Sprintf("exit code %d", exitCode)
	if tail := h.tailText(); tail != "" {
		detail = fmt.Sprintf("%s: %s", detail, tail)
	}
	h.resolve(Result{
		Outcome:  OutcomeFailed,
		ExitCode: exitCode,
		Err:      services.Wrap(services.ErrCompressionFailed, "proc", "wait", detail, waitErr),
	})
}

// resolve writes the outcome exactly once. If cancellation was requested at
// any point before resolution, the outcome is cancelled regardless of how
// the process actually exited, including a clean exit 0.
func (h *Handle) resolve(result Result) {
	h.mu.Lock()
	if h.resolved {
		h.mu.Unlock()
		return
	}
	if h.cancelRequested.Load() && result.Outcome != OutcomeCancelled {
		result = Result{
			Outcome:  OutcomeCancelled,
			ExitCode: result.ExitCode,
			Err:      services.Wrap(services.ErrCancelled, "proc", "wait", "cancellation requested", nil),
		}
	}
	h.resolved = true
	h.result = result
	h.mu.Unlock()

	h.live.Store(false)
	close(h.done)

	h.logger.Debug("process resolved",
		logging.Int("pid", h.pgid),
		logging.String("outcome", result.Outcome.String()),
		logging.Int("exit_code", result.ExitCode))
}

func (h *Handle) recordTail(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tail = append(h.tail, line)
	if len(h.tail) > tailLines {
		h.tail = h.tail[len(h.tail)-tailLines:]
	}
}

// tailText joins the last few output lines for failure diagnostics.
func (h *Handle) tailText() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	tail := h.tail
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	return strings.Join(tail, "; ")
}
