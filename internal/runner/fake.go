package runner

import (
	"context"
	"strings"
	"sync"

	"github.com/blacktop/kextforge/internal/errs"
)

// Response is a scripted outcome for Fake
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Fake is a scripted Runner for tests.
//
// Responses are keyed by the full command line ("csrutil status"); a key that
// is only a program name matches any invocation of that program. Unscripted
// commands behave as if the binary were missing.
type Fake struct {
	mu        sync.Mutex
	Responses map[string]Response
	// Paths is consulted by LookPath; nil means every tool is present
	Paths map[string]string
	Calls []Command
}

// NewFake returns an empty Fake
func NewFake() *Fake {
	return &Fake{Responses: make(map[string]Response)}
}

// On scripts the response for a command line and returns the Fake for chaining
func (f *Fake) On(line string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Responses == nil {
		f.Responses = make(map[string]Response)
	}
	f.Responses[line] = resp
	return f
}

// Run records cmd and returns its scripted response
func (f *Fake) Run(_ context.Context, cmd Command) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, cmd)

	resp, ok := f.Responses[cmd.String()]
	if !ok {
		resp, ok = f.Responses[cmd.Name]
	}
	if !ok {
		return nil, errs.New(errs.NotFound, cmd.Name, "command not found")
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Result{
		Stdout:   []byte(resp.Stdout),
		Stderr:   []byte(resp.Stderr),
		ExitCode: resp.ExitCode,
	}, nil
}

// LookPath resolves name against Paths
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Paths == nil {
		return "/usr/bin/" + name, nil
	}
	if p, ok := f.Paths[name]; ok {
		return p, nil
	}
	return "", errs.New(errs.NotFound, name, "required tool not found")
}

// Called reports whether a command line starting with prefix was run
func (f *Fake) Called(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if strings.HasPrefix(c.String(), prefix) {
			return true
		}
	}
	return false
}

// Lines returns the recorded command lines in order
func (f *Fake) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		out = append(out, c.String())
	}
	return out
}
