package proc

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"os/exec"
	"syscall"

	"vise/internal/logging"
	"vise/internal/services"
)

// Command describes one external process invocation.
type Command struct {
	Binary string
	Args   []string
}

// Start spawns the command in its own process group and begins streaming
// its merged stdout/stderr to onLine, one line per call. The returned
// Handle resolves exactly once; a spawn failure resolves nothing and is
// reported here.
func Start(command Command, onLine func(string), logger *slog.Logger) (*Handle, error) {
	cmd := exec.Command(command.Binary, command.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrCompressionFailed, "proc", "open pipe", command.Binary, err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrCompressionFailed, "proc", "spawn", command.Binary, err)
	}

	if logger == nil {
		logger = logging.NewNop()
	}
	handle := &Handle{
		cmd:    cmd,
		pgid:   cmd.Process.Pid,
		logger: logger,
		done:   make(chan struct{}),
	}
	handle.live.Store(true)

	logger.Debug("process started",
		logging.String("binary", command.Binary),
		logging.Any("args", command.Args),
		logging.Int("pid", cmd.Process.Pid),
		logging.Int("pgid", handle.pgid))

	go handle.stream(stdout, onLine)
	return handle, nil
}

// stream forwards output lines until the merged pipe closes, then reaps the
// process and resolves the outcome. Reading to EOF before Wait keeps the
// final lines intact.
func (h *Handle) stream(pipe io.Reader, onLine func(string)) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		h.recordTail(line)
		if onLine != nil {
			onLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		h.logger.Debug("output stream error", logging.Error(err))
	}
	h.finish(h.cmd.Wait())
}

// scanLines terminates tokens on \r as well as \n. Encoders rewrite their
// status line in place with bare carriage returns, so \r must flush a line
// for progress to surface before process exit. A \r\n pair yields one empty
// token, which stream drops.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
