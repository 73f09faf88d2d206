package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

const appselrc = "~/.config/ade/appsel.toml"

const defaultRC = `# ade-appsel settings, reloaded on save
# locale = "en"
# list_limit = 64
`

var (
	globalConfig *config
	once         sync.Once
)

type config struct {
	static  env
	dynamic rc
	rcPath  string
	watcher *fsnotify.Watcher
}

type (
	env struct {
		UnixSocket  string `envconfig:"ADE_APPSEL_SOCK"`
		Adb         string `envconfig:"ADE_APPSEL_ADB" default:"adb"`
		Serial      string `envconfig:"ADE_APPSEL_SERIAL"`
		Self        string `envconfig:"ADE_APPSEL_SELF" default:"app.olauncher"`
		Profile     int    `envconfig:"ADE_APPSEL_PROFILE" default:"0"`
		Workers     int    `envconfig:"ADE_APPSEL_WORKERS" default:"4"`
		DataDir     string `envconfig:"ADE_APPSEL_DATA_DIR"`
		FilterCache int    `envconfig:"ADE_APPSEL_FILTER_CACHE" default:"512"`
	}
	rc struct {
		sync.RWMutex
		file rcFile
	}
	rcFile struct {
		Locale    string `toml:"locale"`
		ListLimit int    `toml:"list_limit"`
	}
)

// Init initializes and loads configuration
func Init() error {
	var err error
	once.Do(func() {
		globalConfig, err = load(expandPath(appselrc))
	})
	return err
}

func load(rcPath string) (*config, error) {
	c := &config{rcPath: rcPath}

	if err := envconfig.Process("", &c.static); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if c.static.UnixSocket == "" {
		currentUser, err := user.Current()
		if err != nil {
			return nil, err
		}
		c.static.UnixSocket = fmt.Sprintf("/tmp/ade-%s/appsel", currentUser.Uid)
	}
	c.static.UnixSocket = expandPath(c.static.UnixSocket)

	if c.static.DataDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		c.static.DataDir = filepath.Join(dir, "ade")
	}
	c.static.DataDir = expandPath(c.static.DataDir)

	if err := c.loadRC(); err != nil {
		return nil, err
	}
	return c, nil
}

// Run starts the configuration watcher loop
func Run() error {
	if globalConfig == nil {
		if err := Init(); err != nil {
			return err
		}
	}
	if err := globalConfig.setupWatcher(); err != nil {
		return err
	}

	go globalConfig.watchLoop()
	return nil
}

// Get returns the global config instance
func Get() *config {
	if globalConfig == nil {
		if err := Init(); err != nil {
			log.Printf("[WARN] Config init failed: %v", err)
		}
	}
	return globalConfig
}

func (c *config) loadRC() error {
	if err := os.MkdirAll(filepath.Dir(c.rcPath), 0750); err != nil {
		return err
	}

	data, err := os.ReadFile(c.rcPath)
	if errors.Is(err, os.ErrNotExist) {
		return os.WriteFile(c.rcPath, []byte(defaultRC), 0640)
	}
	if err != nil {
		return err
	}

	var file rcFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse %s: %w", c.rcPath, err)
	}

	c.dynamic.Lock()
	defer c.dynamic.Unlock()
	c.dynamic.file = file
	return nil
}

func (c *config) setupWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Editors replace the file on save, so watch the directory
	if err := watcher.Add(filepath.Dir(c.rcPath)); err != nil {
		watcher.Close()
		return err
	}
	c.watcher = watcher
	return nil
}

func (c *config) watchLoop() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Name == c.rcPath && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				if err := c.loadRC(); err != nil {
					log.Printf("[WARN] Error reloading config: %v", err)
				}
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[WARN] Config watcher error: %v", err)
		}
	}
}

// UnixSocket returns the Unix socket path
func (c *config) UnixSocket() string {
	return c.static.UnixSocket
}

// Adb returns the adb executable
func (c *config) Adb() string {
	return c.static.Adb
}

// Serial returns the target device serial, empty for adb's default device
func (c *config) Serial() string {
	return c.static.Serial
}

// Self returns the host package that is never listed
func (c *config) Self() string {
	return c.static.Self
}

// Profile returns the id of the current user profile
func (c *config) Profile() int {
	return c.static.Profile
}

// Workers returns the number of profiles enumerated concurrently
func (c *config) Workers() int {
	if c.static.Workers <= 0 {
		return 4
	}
	return c.static.Workers
}

// DataDir returns the directory holding the preference database
func (c *config) DataDir() string {
	return c.static.DataDir
}

// FilterCache returns the size of the label normalisation cache
func (c *config) FilterCache() int {
	if c.static.FilterCache <= 0 {
		return 512
	}
	return c.static.FilterCache
}

// Locale returns the collation locale from the rc file
func (c *config) Locale() language.Tag {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()

	tag, err := language.Parse(c.dynamic.file.Locale)
	if err != nil {
		return language.Und
	}
	return tag
}

// ListLimit returns the page size of list responses
func (c *config) ListLimit() int {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()

	if c.dynamic.file.ListLimit <= 0 {
		return 64
	}
	return c.dynamic.file.ListLimit
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return strings.Replace(path, "~", home, 1)
	}
	return path
}
