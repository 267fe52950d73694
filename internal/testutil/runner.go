package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/command"
)

// FakeRunner implements command.Runner without spawning processes.
// It records every call and answers through Handler.
type FakeRunner struct {
	mu    sync.Mutex
	calls []command.Command

	// Handler decides the result of each call. Nil means exit 0.
	Handler func(cmd command.Command) (int, error)
}

// Run implements command.Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd command.Command) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	handler := f.Handler
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return command.ExitCodeNotRun, err
	}
	if handler == nil {
		return 0, nil
	}
	return handler(cmd)
}

// Calls returns a copy of the recorded commands in call order.
func (f *FakeRunner) Calls() []command.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]command.Command, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of recorded calls.
func (f *FakeRunner) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// ArgLine joins a command's arguments with single spaces, preferring the raw
// form when present.
func ArgLine(cmd command.Command) string {
	if cmd.RawArgs != "" {
		return cmd.RawArgs
	}
	return strings.Join(cmd.Args, " ")
}

// ExitSequence returns a handler that answers calls with codes in order and
// repeats the last code once the sequence is exhausted.
func ExitSequence(codes ...int) func(command.Command) (int, error) {
	var mu sync.Mutex
	i := 0
	return func(command.Command) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(codes) == 0 {
			return 0, nil
		}
		code := codes[min(i, len(codes)-1)]
		i++
		return code, nil
	}
}

// ExitByArgs returns a handler keyed by ArgLine. Unlisted argument lines
// exit with def.
func ExitByArgs(codes map[string]int, def int) func(command.Command) (int, error) {
	return func(cmd command.Command) (int, error) {
		if code, ok := codes[ArgLine(cmd)]; ok {
			return code, nil
		}
		return def, nil
	}
}
