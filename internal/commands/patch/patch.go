// Package patch runs the full companion install pipeline against a system root
package patch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/blacktop/kextforge/internal/errs"
	"github.com/blacktop/kextforge/internal/runner"
	"github.com/blacktop/kextforge/internal/utils"
	"github.com/blacktop/kextforge/pkg/bundle"
	"github.com/blacktop/kextforge/pkg/catalog"
	"github.com/blacktop/kextforge/pkg/probe"
	"github.com/blacktop/kextforge/pkg/report"
	"github.com/blacktop/kextforge/pkg/strategy"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	ConfigFile    = "kextforge_patch_config.json"
	ReportFile    = "kextforge_patch_report.txt"
	ManifestFile  = "backup_manifest.json"
	RestoreScript = "restore_system.sh"

	cacheTimeout = 10 * time.Minute
)

// errSkip marks a step that had nothing to do
var errSkip = errors.New("skipped")

// Config for a patch run
type Config struct {
	Root       string
	BackupDir  string
	ReportDir  string
	DryRun     bool
	Force      bool
	SkipCaches bool
	Framework  bool
	MinimumOS  string
}

// StepResult is the outcome of one pipeline step
type StepResult struct {
	Name     string   `json:"name"`
	OK       bool     `json:"ok"`
	Skipped  bool     `json:"skipped,omitempty"`
	Messages []string `json:"messages,omitempty"`
}

// Result collects everything a run produced
type Result struct {
	RunID    string            `json:"run_id"`
	DryRun   bool              `json:"dry_run"`
	Steps    []StepResult      `json:"steps"`
	Snapshot probe.Snapshot    `json:"-"`
	Strategy strategy.Strategy `json:"strategy"`

	KextPath      string `json:"kext_path,omitempty"`
	FrameworkPath string `json:"framework_path,omitempty"`
	PluginPath    string `json:"plugin_path,omitempty"`
	BackupPath    string `json:"backup_path,omitempty"`
	RestoreScript string `json:"restore_script,omitempty"`
	ConfigPath    string `json:"config_path,omitempty"`
	ReportPath    string `json:"report_path,omitempty"`
	// Diff is the Info.plist change against an already installed companion
	Diff  string   `json:"diff,omitempty"`
	Files []string `json:"files,omitempty"`

	// Patched lists the system binaries rewritten by the binaries step
	Patched []string `json:"patched,omitempty"`

	Log report.Log `json:"-"`

	backedUp []string
}

// OK reports every step succeeded
func (r *Result) OK() bool {
	for _, s := range r.Steps {
		if !s.OK {
			return false
		}
	}
	return true
}

// Patcher runs the pipeline
type Patcher struct {
	Runner  runner.Runner
	Catalog *catalog.Catalog
	Config  Config
	IsRoot  func() bool
}

// New returns a Patcher for the host
func New(r runner.Runner, cat *catalog.Catalog, conf Config) *Patcher {
	if cat == nil {
		cat = catalog.Default()
	}
	if conf.Root == "" {
		conf.Root = "/"
	}
	if conf.MinimumOS == "" {
		conf.MinimumOS = cat.Companion.MinimumOS
	}
	if conf.BackupDir == "" {
		conf.BackupDir = filepath.Join(os.TempDir(), cat.Companion.Name+"_backup")
	}
	if conf.ReportDir == "" {
		conf.ReportDir = os.TempDir()
	}
	return &Patcher{
		Runner:  r,
		Catalog: cat,
		Config:  conf,
		IsRoot:  utils.IsRoot,
	}
}

type step struct {
	name string
	run  func(context.Context, *Result, *report.Log) error
	// soft steps log their failure and let the run continue
	soft bool
}

// Run executes every step in order and stops at the first hard failure.
// Once the probe has run, reports are written even when a later step fails.
// A dry run writes nothing.
func (p *Patcher) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:  uuid.NewString(),
		DryRun: p.Config.DryRun,
	}

	steps := []step{
		{name: "prerequisites", run: p.prerequisites},
		{name: "probe", run: p.probe},
		{name: "backup", run: p.backup},
		{name: "restore script", run: p.restoreScript},
		{name: "binaries", run: p.patchBinaries, soft: true},
		{name: "build", run: p.build},
		{name: "caches", run: p.caches, soft: true},
		{name: "verify", run: p.verify},
	}

	var runErr error
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		log.Info(strings.ToUpper(s.name[:1]) + s.name[1:])

		var l report.Log
		err := s.run(ctx, res, &l)
		sr := StepResult{Name: s.name, OK: err == nil}
		if errors.Is(err, errSkip) {
			err = nil
			sr.OK, sr.Skipped = true, true
		}
		if err != nil {
			if s.soft {
				l.Warnf("%s: %v", s.name, err)
				utils.Indent(log.Warn, 2)(err.Error())
			} else {
				l.Errorf("%s: %v", s.name, err)
				utils.Indent(log.Error, 2)(err.Error())
			}
		}
		sr.Messages = l.Messages()
		res.Steps = append(res.Steps, sr)
		res.Log.Append(l)

		if err != nil && !s.soft {
			runErr = errors.Wrapf(err, "%s step failed", s.name)
			break
		}
	}

	if !p.Config.DryRun && res.Strategy.InjectionPoints != nil {
		if err := p.writeReports(res); err != nil {
			log.WithError(err).Error("failed to write reports")
			if runErr == nil {
				runErr = err
			}
		}
	}
	return res, runErr
}

func (p *Patcher) path(rel string) string {
	return filepath.Join(p.Config.Root, rel)
}

func (p *Patcher) prerequisites(ctx context.Context, res *Result, l *report.Log) error {
	if !p.IsRoot() {
		if !p.Config.DryRun {
			return errs.New(errs.Permission, "patch", "must be run as root (try sudo)")
		}
		l.Warnf("not running as root; a real run would be refused")
	}

	if _, err := os.Stat(p.Config.Root); err != nil {
		return errs.Wrap(errs.NotFound, "patch", err, "system root %s", p.Config.Root)
	}
	if !utils.IsWritable(p.Config.Root) {
		if !p.Config.DryRun {
			return errs.New(errs.Permission, "patch", "system root %s is not writable", p.Config.Root)
		}
		l.Warnf("system root %s is not writable", p.Config.Root)
	}

	var missing []string
	for _, tool := range p.Catalog.RequiredTools {
		if _, err := p.Runner.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		msg := fmt.Sprintf("missing required tools: %s", strings.Join(missing, ", "))
		if !p.Config.Force && !p.Config.DryRun {
			return errs.New(errs.NotFound, "patch", "%s", msg)
		}
		l.Warnf("%s", msg)
	} else {
		l.Infof("found required tools: %s", strings.Join(p.Catalog.RequiredTools, ", "))
	}

	v := probe.New(p.Runner, p.Catalog, p.Config.Root).ReadOSVersion(ctx)
	switch {
	case v.IsZero():
		if !p.Config.Force {
			return errs.New(errs.Validation, "patch", "unable to detect the OS version (use --force to continue)")
		}
		l.Warnf("unable to detect the OS version")
	case !v.AtLeast(p.Config.MinimumOS):
		if !p.Config.Force {
			return errs.New(errs.Validation, "patch", "macOS %s is older than the required %s (use --force to continue)", v, p.Config.MinimumOS)
		}
		l.Warnf("macOS %s is older than %s; continuing because of --force", v, p.Config.MinimumOS)
	default:
		l.Infof("macOS %s satisfies minimum %s", v, p.Config.MinimumOS)
	}
	return nil
}

func (p *Patcher) probe(ctx context.Context, res *Result, l *report.Log) error {
	res.Snapshot = probe.New(p.Runner, p.Catalog, p.Config.Root).Probe(ctx)
	res.Strategy = strategy.Select(res.Snapshot, p.Catalog)

	l.Infof("macOS %s (%s) on %s", res.Snapshot.OSVersion(), res.Snapshot.OSVersion().Build, res.Snapshot.Arch())
	l.Infof("selected method %s", res.Strategy.Method)
	utils.Indent(log.Info, 2)(fmt.Sprintf("Method: %s", res.Strategy.Method))
	for _, w := range res.Strategy.Warnings {
		l.Warnf("%s", w)
		utils.Indent(log.Warn, 2)(w)
	}
	if len(res.Strategy.InjectionPoints) == 0 {
		return errs.New(errs.Validation, "patch", "no injection points for method %s", res.Strategy.Method)
	}
	return nil
}

type manifestEntry struct {
	Path     string `json:"path"`
	BackedUp bool   `json:"backed_up"`
}

type manifest struct {
	ID         string          `json:"id"`
	Created    time.Time       `json:"created"`
	Root       string          `json:"root"`
	Method     strategy.Method `json:"method"`
	Components []manifestEntry `json:"components"`
}

func (p *Patcher) backup(ctx context.Context, res *Result, l *report.Log) error {
	res.BackupPath = filepath.Join(p.Config.BackupDir, "backup-"+res.RunID[:8])

	m := manifest{
		ID:      res.RunID,
		Created: time.Now().UTC().Truncate(time.Second),
		Root:    p.Config.Root,
		Method:  res.Strategy.Method,
	}
	for _, comp := range p.Catalog.BackupComponents {
		src := p.path(comp)
		if _, err := os.Lstat(src); err != nil {
			l.Infof("%s not present, nothing to back up", comp)
			m.Components = append(m.Components, manifestEntry{Path: comp})
			continue
		}
		if p.Config.DryRun {
			l.Infof("would back up %s", comp)
			continue
		}
		if err := utils.CopyTree(src, filepath.Join(res.BackupPath, comp)); err != nil {
			return errors.Wrapf(err, "failed to back up %s", comp)
		}
		l.Infof("backed up %s", comp)
		m.Components = append(m.Components, manifestEntry{Path: comp, BackedUp: true})
		res.backedUp = append(res.backedUp, comp)
	}
	if p.Config.DryRun {
		l.Infof("would write %s", filepath.Join(res.BackupPath, ManifestFile))
		return nil
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode backup manifest")
	}
	if err := os.MkdirAll(res.BackupPath, 0o755); err != nil {
		return errors.Wrap(err, "failed to create backup dir")
	}
	if err := bundle.WriteFile(filepath.Join(res.BackupPath, ManifestFile), append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(err, "failed to write backup manifest")
	}
	utils.Indent(log.Info, 2)(fmt.Sprintf("Backup created at %s", res.BackupPath))
	return nil
}

// kextDir is the directory the kext is installed into for a strategy
func kextDir(s strategy.Strategy, cat *catalog.Catalog) string {
	for _, pt := range s.InjectionPoints {
		if strings.HasSuffix(pt, bundle.Kext.Extension()) {
			return filepath.Dir(pt)
		}
	}
	for _, pt := range cat.InjectionPoints[catalog.SignedLoad] {
		if strings.HasSuffix(pt, bundle.Kext.Extension()) {
			return filepath.Dir(pt)
		}
	}
	return filepath.Join("Library", "Extensions")
}

// locate fills in where the build step installs each component
func (p *Patcher) locate(res *Result) {
	desc := bundle.CompanionDescriptor(p.Catalog, bundle.Kext)
	res.KextPath = bundle.Path(p.path(kextDir(res.Strategy, p.Catalog)), bundle.Kext, desc.Normalize(bundle.Kext))
	res.FrameworkPath, res.PluginPath = "", ""
	if p.Config.Framework {
		fwDesc := bundle.CompanionDescriptor(p.Catalog, bundle.Framework)
		res.FrameworkPath = bundle.Path(p.path(filepath.Join("Library", "Frameworks")), bundle.Framework, fwDesc.Normalize(bundle.Framework))
	}
	if res.Strategy.Method == strategy.RuntimeInjectionPlugin {
		res.PluginPath = p.path(res.Strategy.InjectionPoints[0])
	}
}

func (p *Patcher) build(ctx context.Context, res *Result, l *report.Log) error {
	root := p.path(kextDir(res.Strategy, p.Catalog))
	desc := bundle.CompanionDescriptor(p.Catalog, bundle.Kext)
	p.locate(res)

	if diff, err := p.descriptorDiff(res.KextPath, desc); err != nil {
		return err
	} else if diff != "" {
		res.Diff = diff
		l.Infof("Info.plist differs from the installed companion")
	}

	if p.Config.DryRun {
		paths, err := bundle.Plan(root, bundle.Kext, desc)
		if err != nil {
			return err
		}
		for _, path := range paths {
			l.Infof("would create %s", path)
		}
		l.Infof("would write %s", filepath.Join(res.KextPath, "Contents", "Resources", "inject.sh"))
	} else {
		if _, err := bundle.Build(root, bundle.Kext, desc); err != nil {
			return errors.Wrap(err, "failed to build kext")
		}
		layout := bundle.LayoutFor(bundle.Kext, desc.Executable)
		script := filepath.Join(res.KextPath, layout.Resources, "inject.sh")
		if err := bundle.WriteFile(script, injectScript(res.KextPath, p.Config.Root, desc), 0o755); err != nil {
			return errors.Wrap(err, "failed to write inject.sh")
		}
		l.Infof("built %s", res.KextPath)
		utils.Indent(log.Info, 2)(fmt.Sprintf("Created %s", res.KextPath))
	}

	if p.Config.Framework {
		fwRoot := p.path(filepath.Join("Library", "Frameworks"))
		fwDesc := bundle.CompanionDescriptor(p.Catalog, bundle.Framework)
		if p.Config.DryRun {
			l.Infof("would create %s", res.FrameworkPath)
		} else {
			if _, err := bundle.Build(fwRoot, bundle.Framework, fwDesc); err != nil {
				return errors.Wrap(err, "failed to build framework")
			}
			l.Infof("built %s", res.FrameworkPath)
		}
	}

	if res.Strategy.Method == strategy.RuntimeInjectionPlugin {
		if err := p.plugin(res, desc, l); err != nil {
			return err
		}
	}
	return nil
}

func (p *Patcher) descriptorDiff(kextPath string, desc bundle.Descriptor) (string, error) {
	info := filepath.Join(kextPath, bundle.LayoutFor(bundle.Kext, desc.Executable).Info)
	old, err := os.ReadFile(info)
	if err != nil {
		return "", nil
	}
	data, err := desc.Normalize(bundle.Kext).Marshal()
	if err != nil {
		return "", err
	}
	return utils.Diff(string(old), string(data), false), nil
}

// plugin writes the SkyLight plugin placeholder and its target list
func (p *Patcher) plugin(res *Result, desc bundle.Descriptor, l *report.Log) error {
	targets := pluginTargets(res.Strategy, p.Config.Root, res.KextPath, desc)
	list := strings.TrimSuffix(res.PluginPath, filepath.Ext(res.PluginPath)) + ".txt"

	if p.Config.DryRun {
		l.Infof("would write %s", res.PluginPath)
		l.Infof("would write %s", list)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(res.PluginPath), 0o755); err != nil {
		return errors.Wrap(err, "failed to create plugin dir")
	}
	if err := bundle.WriteFile(res.PluginPath, bundle.Placeholder(desc), 0o755); err != nil {
		return errors.Wrap(err, "failed to write plugin")
	}
	if err := bundle.WriteFile(list, []byte(strings.Join(targets, "\n")+"\n"), 0o644); err != nil {
		return errors.Wrap(err, "failed to write plugin targets")
	}
	l.Infof("wrote SkyLight plugin %s", res.PluginPath)
	return nil
}

// pluginTargets lists the executables the runtime plugin hooks, as absolute
// paths on the booted system
func pluginTargets(s strategy.Strategy, root, kextPath string, desc bundle.Descriptor) []string {
	rel, err := filepath.Rel(root, kextPath)
	if err != nil {
		rel = kextPath
	}
	targets := []string{"/" + filepath.Join(rel, bundle.LayoutFor(bundle.Kext, desc.Executable).Payload)}
	for _, pt := range s.InjectionPoints {
		if strings.HasSuffix(pt, ".app") {
			name := strings.TrimSuffix(filepath.Base(pt), ".app")
			targets = append(targets, "/"+filepath.Join(pt, "Contents", "MacOS", name))
		}
	}
	return targets
}

func injectScript(kextPath, root string, desc bundle.Descriptor) []byte {
	rel, err := filepath.Rel(root, kextPath)
	if err != nil {
		rel = kextPath
	}
	installed := "/" + rel
	return []byte(fmt.Sprintf(`#!/bin/sh
# Load %[1]s
set -e

KEXT="%[2]s"

if [ "$(id -u)" -ne 0 ]; then
    echo "must be run as root" >&2
    exit 1
fi

chown -R root:wheel "$KEXT"
chmod -R 755 "$KEXT"
kextload "$KEXT"
kextstat -b %[1]s
`, desc.Identifier, installed))
}

func (p *Patcher) caches(ctx context.Context, res *Result, l *report.Log) error {
	if p.Config.SkipCaches {
		l.Infof("skipping cache rebuild")
		return errSkip
	}
	extensions := p.path(filepath.Join("Library", "Extensions"))
	kc := runner.Command{Name: "kextcache", Args: []string{"-i", p.Config.Root}, Timeout: cacheTimeout}
	if _, err := p.Runner.LookPath("kextcache"); err != nil {
		kc = runner.Command{Name: "kmutil", Args: []string{"install", "--volume-root", p.Config.Root, "--update-all"}, Timeout: cacheTimeout}
	}
	cmds := []runner.Command{
		kc,
		{Name: "update_dyld_shared_cache", Args: []string{"-force"}, Timeout: cacheTimeout},
	}
	if p.Config.DryRun {
		for _, c := range cmds {
			l.Infof("would run %s", c)
		}
		l.Infof("would touch %s", extensions)
		return nil
	}

	var failed []string
	for _, c := range cmds {
		if _, err := runner.MustRun(ctx, p.Runner, c); err != nil {
			l.Warnf("%v", err)
			failed = append(failed, c.Name)
			continue
		}
		l.Infof("ran %s", c)
	}
	if err := utils.Touch(extensions); err != nil {
		l.Warnf("failed to touch %s: %v", extensions, err)
		failed = append(failed, "touch")
	}
	if len(failed) > 0 {
		return fmt.Errorf("cache update incomplete (%s); rebuild manually before rebooting", strings.Join(failed, ", "))
	}
	return nil
}

func (p *Patcher) verify(ctx context.Context, res *Result, l *report.Log) error {
	cmd := runner.Command{Name: "kextutil", Args: []string{"-n", res.KextPath}}
	if p.Config.DryRun {
		l.Infof("would run %s", cmd)
		return nil
	}
	if _, err := os.Stat(res.KextPath); err != nil {
		return errs.Wrap(errs.NotFound, "verify", err, "kext missing after build")
	}
	if _, err := runner.MustRun(ctx, p.Runner, cmd); err != nil {
		return errors.Wrap(err, "kext failed validation")
	}
	l.Infof("%s passed kextutil validation", filepath.Base(res.KextPath))

	info, err := bundle.Inspect(res.KextPath)
	if err != nil {
		return err
	}
	for _, f := range info.Files {
		res.Files = append(res.Files, filepath.Join(res.KextPath, f.Path))
	}
	if res.PluginPath != "" {
		res.Files = append(res.Files, res.PluginPath)
	}
	return nil
}

// restoreScript is written before anything on the root changes so a failed or
// interrupted run can always be rolled back
func (p *Patcher) restoreScript(ctx context.Context, res *Result, l *report.Log) error {
	p.locate(res)
	res.RestoreScript = filepath.Join(res.BackupPath, RestoreScript)
	if p.Config.DryRun {
		l.Infof("would write %s", res.RestoreScript)
		return nil
	}

	var sb strings.Builder
	sb.WriteString("#!/bin/sh\n# Restore the components saved before run " + res.RunID + "\nset -e\n\n")
	fmt.Fprintf(&sb, "ROOT=%q\nBACKUP=%q\n\n", p.Config.Root, res.BackupPath)

	var created []string
	for _, path := range []string{res.KextPath, res.FrameworkPath, res.PluginPath} {
		if path == "" {
			continue
		}
		rel, err := filepath.Rel(p.Config.Root, path)
		if err != nil {
			continue
		}
		if !utils.StrSliceHas(res.backedUp, rel) {
			created = append(created, rel)
		}
	}
	for _, rel := range created {
		fmt.Fprintf(&sb, "rm -rf \"$ROOT/%s\"\n", rel)
	}
	for _, rel := range res.backedUp {
		fmt.Fprintf(&sb, "rm -rf \"$ROOT/%s\"\n", rel)
		fmt.Fprintf(&sb, "mkdir -p \"$(dirname \"$ROOT/%s\")\"\n", rel)
		fmt.Fprintf(&sb, "cp -R \"$BACKUP/%s\" \"$ROOT/%s\"\n", rel, rel)
	}
	sb.WriteString("\nkextcache -i \"$ROOT\"\necho \"System restored. Reboot to apply.\"\n")

	if err := os.MkdirAll(res.BackupPath, 0o755); err != nil {
		return err
	}
	if err := bundle.WriteFile(res.RestoreScript, []byte(sb.String()), 0o755); err != nil {
		return errors.Wrap(err, "failed to write restore script")
	}
	l.Infof("wrote %s", res.RestoreScript)
	return nil
}

// covered reports whether rel lies inside one of the components
func covered(rel string, components []string) bool {
	for _, c := range components {
		if rel == c || strings.HasPrefix(rel, c+"/") {
			return true
		}
	}
	return false
}

// patchBinaries applies the catalog's byte patches to system binaries. Only
// binaries inside a backed up component are touched, and each rewritten
// binary is ad hoc re-signed.
func (p *Patcher) patchBinaries(ctx context.Context, res *Result, l *report.Log) error {
	components := res.backedUp
	if p.Config.DryRun {
		components = p.Catalog.BackupComponents
	}

	var failed []string
	var present int
	for _, bp := range p.Catalog.BinaryPatches {
		path := p.path(bp.Binary)
		if _, err := os.Stat(path); err != nil {
			l.Infof("%s not present, nothing to patch", bp.Binary)
			continue
		}
		present++
		if !covered(bp.Binary, components) {
			l.Warnf("%s is not covered by a backup; leaving it untouched", bp.Binary)
			failed = append(failed, bp.Name)
			continue
		}

		if _, err := p.Runner.LookPath("lipo"); err == nil {
			if out, err := runner.MustRun(ctx, p.Runner, runner.Command{Name: "lipo", Args: []string{"-archs", path}}); err == nil {
				l.Infof("%s architectures: %s", bp.Name, out.Text())
			}
		}

		pr, err := bundle.PatchBinary(path, bp.Replacements, p.Config.DryRun)
		if err != nil {
			l.Warnf("%s: %v", bp.Name, err)
			failed = append(failed, bp.Name)
			continue
		}
		for _, o := range pr.Outcomes {
			if o.Applied() {
				l.Infof("%s: %s", bp.Name, o)
			} else {
				l.Warnf("%s: %s", bp.Name, o)
			}
		}
		switch {
		case pr.Applied() == 0:
			l.Warnf("%s: no patches applied", bp.Name)
			continue
		case p.Config.DryRun:
			l.Infof("would patch %s", path)
			l.Infof("would run codesign -f -s - %s", path)
			continue
		}

		res.Patched = append(res.Patched, path)
		utils.Indent(log.Info, 2)(fmt.Sprintf("Patched %s", path))
		for _, c := range []runner.Command{
			{Name: "codesign", Args: []string{"-f", "-s", "-", path}},
			{Name: "codesign", Args: []string{"--verify", "--verbose=4", path}},
		} {
			if _, err := runner.MustRun(ctx, p.Runner, c); err != nil {
				l.Warnf("%v", err)
				failed = append(failed, bp.Name)
				break
			}
			l.Infof("ran %s", c)
		}
	}

	if present == 0 {
		return errSkip
	}
	if len(failed) > 0 {
		return fmt.Errorf("binary patching incomplete (%s)", strings.Join(failed, ", "))
	}
	return nil
}

func (p *Patcher) writeReports(res *Result) error {
	res.ConfigPath = filepath.Join(p.Config.ReportDir, ConfigFile)
	if err := report.New(res.Snapshot, res.Strategy, p.Catalog).WriteJSON(res.ConfigPath); err != nil {
		return err
	}
	res.ReportPath = filepath.Join(p.Config.ReportDir, ReportFile)
	files := append([]string{}, res.Files...)
	files = append(files, res.Patched...)
	files = append(files, res.ConfigPath)
	if res.RestoreScript != "" {
		files = append(files, res.RestoreScript)
	}
	return report.WriteText(res.ReportPath, p.Catalog.Companion.Name+" Patch Report", res.Log, files)
}
