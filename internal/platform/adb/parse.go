package adb

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/0xADE/ade-appsel/internal/catalog"
)

const (
	MainAction       = "android.intent.action.MAIN"
	LauncherCategory = "android.intent.category.LAUNCHER"

	installTimeLayout = "2006-01-02 15:04:05"
)

var (
	userInfoRe    = regexp.MustCompile(`UserInfo\{(\d+):`)
	packageHeadRe = regexp.MustCompile(`^\s*Package \[([^\]]+)\]`)
	userHeadRe    = regexp.MustCompile(`^\s*User (\d+):`)
)

// ParseUsers extracts profile ids from `pm list users` output
func ParseUsers(out string) []catalog.ProfileID {
	var profiles []catalog.ProfileID
	seen := make(map[catalog.ProfileID]bool)
	for _, m := range userInfoRe.FindAllStringSubmatch(out, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		p := catalog.ProfileID(id)
		if seen[p] {
			continue
		}
		seen[p] = true
		profiles = append(profiles, p)
	}
	return profiles
}

// ParseComponents reads `pkg/class` lines as printed by
// `cmd package query-activities --components`. A class starting with a dot
// is relative to its package.
func ParseComponents(out string) [][2]string {
	var comps [][2]string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		pkg, cls, ok := strings.Cut(line, "/")
		if !ok || pkg == "" || cls == "" || strings.ContainsAny(pkg, " \t") {
			continue
		}
		if strings.HasPrefix(cls, ".") {
			cls = pkg + cls
		}
		comps = append(comps, [2]string{pkg, cls})
	}
	return comps
}

// ParsePackageList reads `package:<name>` lines of `pm list packages`
func ParsePackageList(out string) map[string]bool {
	pkgs := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if name, ok := strings.CutPrefix(line, "package:"); ok && name != "" {
			pkgs[name] = true
		}
	}
	return pkgs
}

// ParseInstallTimes collects firstInstallTime per package from
// `dumpsys package packages`. Newer releases print it inside per-user
// blocks; those win over the package-wide value for that user.
func ParseInstallTimes(out string, profile catalog.ProfileID, loc *time.Location) map[string]time.Time {
	times := make(map[string]time.Time)
	userScoped := make(map[string]bool)

	var pkg string
	user := -1
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()

		if m := packageHeadRe.FindStringSubmatch(line); m != nil {
			pkg, user = m[1], -1
			continue
		}
		if pkg == "" {
			continue
		}
		if m := userHeadRe.FindStringSubmatch(line); m != nil {
			user, _ = strconv.Atoi(m[1])
			continue
		}

		_, raw, ok := strings.Cut(strings.TrimSpace(line), "firstInstallTime=")
		if !ok {
			continue
		}
		ts, err := time.ParseInLocation(installTimeLayout, strings.TrimSpace(raw), loc)
		if err != nil {
			continue
		}

		switch {
		case user == int(profile):
			times[pkg] = ts
			userScoped[pkg] = true
		case user == -1 && !userScoped[pkg]:
			times[pkg] = ts
		}
	}
	return times
}

var labelSkip = map[string]bool{
	"com": true, "org": true, "net": true, "io": true, "app": true,
	"android": true, "apps": true, "mobile": true,
}

// LabelFor derives a display label from a package name. adb has no access
// to resource labels without pulling the apk.
func LabelFor(pkg string) string {
	parts := strings.Split(pkg, ".")
	var meaningful []string
	for _, p := range parts {
		if p != "" && !labelSkip[strings.ToLower(p)] {
			meaningful = append(meaningful, p)
		}
	}
	if len(meaningful) == 0 {
		meaningful = parts[len(parts)-1:]
	}
	return cases.Title(language.Und).String(meaningful[len(meaningful)-1])
}
