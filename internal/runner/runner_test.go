package runner

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/blacktop/kextforge/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("posix shell required")
	}
}

func TestExecRun(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name     string
		cmd      Command
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{
			name:    "stdout",
			cmd:     Command{Name: "sh", Args: []string{"-c", "echo hello"}},
			wantOut: "hello",
		},
		{
			name:     "non-zero exit is not an error",
			cmd:      Command{Name: "sh", Args: []string{"-c", "echo oops >&2; exit 3"}},
			wantCode: 3,
			wantErr:  "oops",
		},
		{
			name:    "stdin",
			cmd:     Command{Name: "cat", Stdin: []byte("piped\n")},
			wantOut: "piped",
		},
	}

	r := NewExec(5 * time.Second)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Run(context.Background(), tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, res.ExitCode)
			assert.Equal(t, tt.wantOut, res.Text())
			assert.Equal(t, tt.wantErr, res.ErrText())
			assert.Equal(t, tt.wantCode == 0, res.OK())
		})
	}
}

func TestExecMissingBinary(t *testing.T) {
	r := NewExec(0)
	_, err := r.Run(context.Background(), Command{Name: "kextforge-no-such-tool"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = r.LookPath("kextforge-no-such-tool")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestExecTimeout(t *testing.T) {
	skipOnWindows(t)

	r := NewExec(time.Second)
	res, err := r.Run(context.Background(), Command{
		Name:    "sleep",
		Args:    []string{"5"},
		Timeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrExternalTool)
	require.NotNil(t, res)
	assert.True(t, res.TimedOut)
	assert.False(t, res.OK())
}

func TestExecCancelled(t *testing.T) {
	skipOnWindows(t)

	r := NewExec(5 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	res, err := r.Run(ctx, Command{Name: "sleep", Args: []string{"5"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrExternalTool)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, -1, res.ExitCode)
	assert.False(t, res.TimedOut)

	_, err = r.Run(ctx, Command{Name: "sh", Args: []string{"-c", "exit 0"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheck(t *testing.T) {
	cmd := Command{Name: "kextutil", Args: []string{"-n", "x.kext"}}

	assert.NoError(t, Check(cmd, &Result{}, nil))

	err := Check(cmd, &Result{ExitCode: 1, Stderr: []byte("bad signature\n")}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrExternalTool)
	assert.Contains(t, err.Error(), "bad signature")
	assert.Contains(t, err.Error(), "kextutil -n x.kext")

	orig := errors.New("boom")
	assert.Equal(t, orig, Check(cmd, nil, orig))
}

func TestFake(t *testing.T) {
	f := NewFake().
		On("csrutil status", Response{Stdout: "System Integrity Protection status: enabled.\n"}).
		On("kextstat", Response{ExitCode: 1})

	res, err := f.Run(context.Background(), Command{Name: "csrutil", Args: []string{"status"}})
	require.NoError(t, err)
	assert.Equal(t, "System Integrity Protection status: enabled.", res.Text())

	res, err = f.Run(context.Background(), Command{Name: "kextstat", Args: []string{"-b", "com.apple.x"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)

	_, err = f.Run(context.Background(), Command{Name: "sw_vers"})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	assert.Equal(t, []string{"csrutil status", "kextstat -b com.apple.x", "sw_vers"}, f.Lines())
	assert.True(t, f.Called("kextstat -b"))
	assert.False(t, f.Called("kextcache"))

	f.Paths = map[string]string{"lipo": "/usr/bin/lipo"}
	_, err = f.LookPath("codesign")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	p, err := f.LookPath("lipo")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/lipo", p)
}
