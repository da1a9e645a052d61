package grove

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/phanxgames/grove/assetfs"
	"github.com/phanxgames/grove/lang"
	"github.com/phanxgames/grove/version"
)

// Config configures a Runtime. File-backed fields carry TOML tags; the
// rest are set in code.
//
//	title      = "My Game"
//	width      = 426
//	height     = 240
//	data_dir   = "."
//	user_dir   = "~/.local/share/mygame"
//	startup    = ["TitleScreen"]
//	log_level  = "info"
type Config struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	TPS    int    `toml:"tps"`

	// DataDir holds the base content; UserDir, when set, overrides it.
	DataDir string `toml:"data_dir"`
	UserDir string `toml:"user_dir"`

	ScriptsDir string `toml:"scripts_dir"`
	ScriptExt  string `toml:"script_ext"`
	Language   string `toml:"language"`

	// Startup lists the programs the built-in Application spawns.
	Startup []string `toml:"startup"`

	// MinRuntimeVersion is the oldest object runtime this build accepts.
	MinRuntimeVersion string `toml:"min_runtime_version"`

	CacheSize int    `toml:"cache_size"`
	LogLevel  string `toml:"log_level"`
	Debug     bool   `toml:"debug"`
	ShowFPS   bool   `toml:"show_fps"`

	// RuntimeVersion is the version of the linked object runtime. Tests
	// lower it to exercise the version gate.
	RuntimeVersion string `toml:"-"`

	Logger *zap.Logger    `toml:"-"`
	Store  *assetfs.Store `toml:"-"`
	// Fatal is called by Runtime.Fail after logging. Defaults to exiting
	// the process.
	Fatal FatalFunc `toml:"-"`
	// Namespaces are registered after the built-in ones on every
	// (re)initialization.
	Namespaces []Namespace           `toml:"-"`
	Input      InputSource           `toml:"-"`
	Events     EventSink             `toml:"-"`
	Metrics    prometheus.Registerer `toml:"-"`
}

// DefaultConfig returns the configuration used for unset fields.
func DefaultConfig() Config {
	return Config{
		Title:             "grove",
		Width:             426,
		Height:            240,
		TPS:               60,
		DataDir:           ".",
		ScriptsDir:        DefaultScriptsDir,
		ScriptExt:         DefaultScriptExt,
		Language:          lang.DefaultFile,
		MinRuntimeVersion: version.MinRuntime,
		CacheSize:         DefaultCacheSize,
		LogLevel:          "info",
	}
}

// LoadConfig reads a TOML file over DefaultConfig. Unknown keys are an
// error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Height <= 0 {
		c.Height = d.Height
	}
	if c.TPS <= 0 {
		c.TPS = d.TPS
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.ScriptsDir == "" {
		c.ScriptsDir = d.ScriptsDir
	}
	if c.ScriptExt == "" {
		c.ScriptExt = d.ScriptExt
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.MinRuntimeVersion == "" {
		c.MinRuntimeVersion = d.MinRuntimeVersion
	}
	if c.RuntimeVersion == "" {
		c.RuntimeVersion = version.Runtime
	}
	if c.CacheSize == 0 {
		c.CacheSize = d.CacheSize
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Fatal == nil {
		c.Fatal = exitFatal
	}
	if c.Store == nil {
		c.Store = assetfs.NewOS(c.DataDir, c.UserDir)
	}
	return c
}
