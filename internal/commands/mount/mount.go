// Package mount provides the mount command
package mount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/blacktop/kextforge/internal/errs"
	"github.com/blacktop/kextforge/internal/runner"
	"github.com/blacktop/kextforge/internal/utils"
)

// MountBin is the mount binary every attempt runs
const MountBin = "/sbin/mount"

// Attempt methods
const (
	MethodRoot         = "root"
	MethodPasswordless = "passwordless sudo"
	MethodPassword     = "sudo with password"
	MethodInteractive  = "interactive sudo"
)

// Options control how a volume is mounted
type Options struct {
	Type    string   `json:"type,omitempty"`
	Options []string `json:"options,omitempty"`
	// Password is fed to `sudo -S` when set
	Password string `json:"-"`
	// Interactive allows a final attempt on the caller's terminal
	Interactive        bool          `json:"interactive,omitempty"`
	InteractiveTimeout time.Duration `json:"interactive_timeout,omitempty"`
}

// Attempt records one privilege path
type Attempt struct {
	Method  string `json:"method"`
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Context is the mount context
type Context struct {
	Device     string    `json:"device"`
	MountPoint string    `json:"mount_point"`
	Method     string    `json:"method,omitempty"`
	Attempts   []Attempt `json:"attempts"`
}

// Mounter mounts volumes through the available privilege paths
type Mounter struct {
	Runner runner.Runner
	IsRoot func() bool
	IsTTY  func() bool
}

// New returns a Mounter wired to the real process state
func New(r runner.Runner) *Mounter {
	return &Mounter{Runner: r, IsRoot: utils.IsRoot, IsTTY: utils.StdinIsTerminal}
}

func mountArgs(device, mountpoint string, opts Options) []string {
	typ := opts.Type
	if typ == "" {
		typ = "apfs"
	}
	o := opts.Options
	if len(o) == 0 {
		o = []string{"nobrowse"}
	}
	return []string{"-o", strings.Join(o, ","), "-t", typ, device, mountpoint}
}

// Mount mounts device at mountpoint. As root it mounts directly; otherwise it
// tries passwordless sudo, then sudo with the supplied password, then an
// interactive sudo when allowed and attached to a terminal. It fails with an
// ExternalTool error once every path has failed.
func (m *Mounter) Mount(ctx context.Context, device, mountpoint string, opts Options) (*Context, error) {
	if device == "" || mountpoint == "" {
		return nil, errs.New(errs.Validation, "mount", "device and mount point are required")
	}

	mctx := &Context{Device: device, MountPoint: mountpoint}
	args := mountArgs(device, mountpoint, opts)

	try := func(method string, cmd runner.Command) bool {
		a := Attempt{Method: method, Command: cmd.String()}
		utils.Indent(log.Info, 2)(fmt.Sprintf("Attempting %s", method))
		res, err := m.Runner.Run(ctx, cmd)
		switch {
		case err != nil:
			a.Error = err.Error()
		case !res.OK():
			a.Error = strings.TrimSpace(res.ErrText())
			if a.Error == "" {
				a.Error = fmt.Sprintf("exit status %d", res.ExitCode)
			}
		default:
			a.OK = true
			mctx.Method = method
		}
		if !a.OK {
			// never echo the password back
			if opts.Password != "" {
				a.Error = strings.ReplaceAll(a.Error, opts.Password, "********")
			}
			utils.Indent(log.WithField("error", a.Error).Warn, 3)(fmt.Sprintf("%s failed", method))
		}
		mctx.Attempts = append(mctx.Attempts, a)
		return a.OK
	}

	if m.IsRoot != nil && m.IsRoot() {
		if try(MethodRoot, runner.Command{Name: MountBin, Args: args}) {
			return mctx, nil
		}
		return mctx, m.failure(device, mountpoint)
	}

	if try(MethodPasswordless, runner.Command{Name: "sudo", Args: append([]string{"-n", MountBin}, args...)}) {
		return mctx, nil
	}

	if opts.Password != "" {
		cmd := runner.Command{
			Name:  "sudo",
			Args:  append([]string{"-S", "-p", "", MountBin}, args...),
			Stdin: []byte(opts.Password + "\n"),
		}
		if try(MethodPassword, cmd) {
			return mctx, nil
		}
	}

	if opts.Interactive && m.IsTTY != nil && m.IsTTY() {
		timeout := opts.InteractiveTimeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		cmd := runner.Command{
			Name:        "sudo",
			Args:        append([]string{MountBin}, args...),
			Interactive: true,
			Timeout:     timeout,
		}
		if try(MethodInteractive, cmd) {
			return mctx, nil
		}
	}

	return mctx, m.failure(device, mountpoint)
}

func (m *Mounter) failure(device, mountpoint string) error {
	return errs.New(errs.ExternalTool, "mount", "all mount attempts failed for %s at %s", device, mountpoint)
}

// Suggestions are printed after every path failed
func Suggestions(device, mountpoint string) []string {
	return []string{
		"Run as root: sudo kextforge mount " + device + " " + mountpoint,
		"Configure passwordless mounting: sudo kextforge sudoers --configure",
		"Check the device exists: ls -la /dev/disk*",
		"Check the mount point exists: ls -la " + mountpoint,
		"Check whether the device is already mounted: mount | grep apfs",
	}
}
