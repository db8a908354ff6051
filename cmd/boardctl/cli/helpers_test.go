package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/spf13/cobra"
)

type cobraRoot struct {
	*cobra.Command
}

func (r *cobraRoot) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	r.SetOut(&out)
	r.SetErr(&out)
	r.SetArgs(append(args, "--config", t.TempDir()))
	err := r.Execute()
	return out.String(), err
}

// syncBuffer is a bytes.Buffer safe for a command writing while the test reads
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (r *cobraRoot) start(ctx context.Context, t *testing.T, args ...string) (*syncBuffer, <-chan error) {
	t.Helper()
	out := &syncBuffer{}
	r.SetOut(out)
	r.SetErr(out)
	r.SetArgs(append(args, "--config", t.TempDir()))

	done := make(chan error, 1)
	go func() {
		done <- r.ExecuteContext(ctx)
	}()
	return out, done
}
