// Package adb enumerates launchable apps and performs app actions on an
// Android device through the adb shell.
package adb

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/0xADE/ade-appsel/internal/catalog"
)

// Runner executes a shell command on the device
type Runner interface {
	Shell(ctx context.Context, args ...string) (string, error)
}

// ExecRunner runs commands through the adb binary
type ExecRunner struct {
	Bin    string // adb executable, "adb" when empty
	Serial string // Target device, adb's default when empty
}

func (r ExecRunner) Shell(ctx context.Context, args ...string) (string, error) {
	bin := r.Bin
	if bin == "" {
		bin = "adb"
	}

	full := make([]string, 0, len(args)+3)
	if r.Serial != "" {
		full = append(full, "-s", r.Serial)
	}
	full = append(full, "shell")
	full = append(full, args...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, full...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Device implements catalog.Platform and the selector's system actions
type Device struct {
	runner   Runner
	location *time.Location

	mu   sync.Mutex
	dump *packageDump // Shared by the profiles of one scan
}

// packageDump is the device-wide dumpsys output, fetched at most once
type packageDump struct {
	once sync.Once
	out  string
	err  error
}

// NewDevice wraps a runner. Install times are read in the local zone.
func NewDevice(runner Runner) *Device {
	return &Device{runner: runner, location: time.Local}
}

// ListProfiles returns every user on the device. It starts a new scan, so
// the package dump is fetched again by the next activity listing.
func (d *Device) ListProfiles(ctx context.Context) ([]catalog.ProfileID, error) {
	d.mu.Lock()
	d.dump = nil
	d.mu.Unlock()

	out, err := d.runner.Shell(ctx, "pm", "list", "users")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	profiles := ParseUsers(out)
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no users in pm output")
	}
	return profiles, nil
}

// ListLaunchableActivities returns the MAIN/LAUNCHER activities of profile
func (d *Device) ListLaunchableActivities(ctx context.Context, profile catalog.ProfileID) ([]catalog.Activity, error) {
	user := strconv.Itoa(int(profile))
	out, err := d.runner.Shell(ctx, "cmd", "package", "query-activities", "--brief", "--components",
		"--user", user, "-a", MainAction, "-c", LauncherCategory)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities for %s: %w", profile, err)
	}
	comps := ParseComponents(out)

	// Install times only drive the recency flag
	var installed map[string]time.Time
	if dump, err := d.packages(ctx); err == nil {
		installed = ParseInstallTimes(dump, profile, d.location)
	}

	acts := make([]catalog.Activity, 0, len(comps))
	for _, c := range comps {
		acts = append(acts, catalog.Activity{
			Package:      c[0],
			Component:    c[1],
			Label:        LabelFor(c[0]),
			FirstInstall: installed[c[0]],
		})
	}
	return acts, nil
}

// packages returns the package dump of the current scan
func (d *Device) packages(ctx context.Context) (string, error) {
	d.mu.Lock()
	if d.dump == nil {
		d.dump = &packageDump{}
	}
	dump := d.dump
	d.mu.Unlock()

	dump.once.Do(func() {
		dump.out, dump.err = d.runner.Shell(ctx, "dumpsys", "package", "packages")
	})
	return dump.out, dump.err
}

// IsSystemApp reports whether pkg ships with the system image. Lookup
// failures count as system so the delete action stays disabled.
func (d *Device) IsSystemApp(ctx context.Context, pkg string) bool {
	out, err := d.runner.Shell(ctx, "pm", "list", "packages", "-s")
	if err != nil {
		return true
	}
	return ParsePackageList(out)[pkg]
}

// Uninstall removes pkg for a single profile
func (d *Device) Uninstall(ctx context.Context, pkg string, profile catalog.ProfileID) error {
	out, err := d.runner.Shell(ctx, "pm", "uninstall", "--user", strconv.Itoa(int(profile)), pkg)
	if err != nil {
		return err
	}
	if !strings.Contains(out, "Success") {
		return fmt.Errorf("uninstall %s: %s", pkg, strings.TrimSpace(out))
	}
	return nil
}

// OpenAppInfo shows the system details screen of pkg
func (d *Device) OpenAppInfo(ctx context.Context, pkg string, profile catalog.ProfileID) error {
	out, err := d.runner.Shell(ctx, "am", "start", "--user", strconv.Itoa(int(profile)),
		"-a", "android.settings.APPLICATION_DETAILS_SETTINGS", "-d", "package:"+pkg)
	if err != nil {
		return err
	}
	if strings.Contains(out, "Error") {
		return fmt.Errorf("open app info %s: %s", pkg, strings.TrimSpace(out))
	}
	return nil
}
