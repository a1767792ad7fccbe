package audio

import (
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const stopGrace = 500 * time.Millisecond

// tailBuffer keeps the last max bytes written to it, for error reports
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 4 << 10
	}
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

// stopProcess interrupts cmd and kills it after a grace period. done must
// deliver the result of cmd.Wait.
func stopProcess(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(os.Interrupt)
	select {
	case <-time.After(stopGrace):
		_ = cmd.Process.Kill()
		<-done
	case <-done:
	}
}

func describeExit(err error, stderr *tailBuffer) string {
	msg := stderr.String()
	if msg == "" && err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = "process exited"
	}
	return msg
}
