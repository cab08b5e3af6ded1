package executor

import (
	"context"
	"io"
)

// Executor runs an external command, feeding it stdin and capturing stdout.
type Executor interface {
	Execute(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)
}
