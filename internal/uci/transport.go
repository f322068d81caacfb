package uci

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/on62/cairo-board/internal/obslog"
)

// Transport owns the engine process and its pipes. It does not restart
// the process; liveness is the read loop's concern.
type Transport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	wmu      sync.Mutex
	closeOne sync.Once
	closeErr error
}

// SpawnTransport starts the engine binary with stdin/stdout piped to the
// adapter. A failed start is fatal to the session.
func SpawnTransport(ctx context.Context, binaryPath string) (*Transport, error) {
	cmd := exec.CommandContext(ctx, binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start engine %s: %w", binaryPath, err)
	}

	obslog.L().Info("engine_spawned",
		zap.String("path", binaryPath),
		zap.Int("pid", cmd.Process.Pid),
	)
	return &Transport{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

// Send writes one or more newline-terminated commands to the engine.
// A broken pipe degrades the session but is not fatal to the caller.
func (t *Transport) Send(text string) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	if _, err := io.WriteString(t.stdin, text); err != nil {
		obslog.L().Warn("engine_write_failed",
			zap.String("command", strings.TrimSpace(text)),
			zap.Error(err),
		)
		return fmt.Errorf("write to engine: %w", err)
	}
	obslog.L().Debug("uci_send", zap.String("command", strings.TrimSpace(text)))
	return nil
}

// ReadChunk performs one blocking read of the engine's output stream.
func (t *Transport) ReadChunk(p []byte) (int, error) {
	return t.stdout.Read(p)
}

// Close tears the process down: stdin closes first so a well-behaved
// engine exits on its own, then the process is killed and reaped.
func (t *Transport) Close() error {
	t.closeOne.Do(func() {
		if t.stdin != nil {
			_ = t.stdin.Close()
		}
		if t.cmd != nil && t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
		if t.cmd != nil {
			t.closeErr = t.cmd.Wait()
		}
	})
	return t.closeErr
}
