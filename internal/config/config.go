// ABOUTME: Configuration loading
// ABOUTME: Reads stretchaudio.yaml and STRETCHAUDIO_ environment overrides
package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/kkyr/fig"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/Resonate-Protocol/stretchaudio/pkg/stretch"
)

const (
	EnvPrefix = "STRETCHAUDIO"
	FileName  = "stretchaudio.yaml"
)

type Config struct {
	Render Render `fig:"render"`
	Log    Log    `fig:"log"`
}

type Render struct {
	ChunkFrames   int           `fig:"chunk_frames" default:"4096"`
	RetryLimit    int           `fig:"retry_limit" default:"1000"`
	RetryInterval time.Duration `fig:"retry_interval" default:"10ms"`
}

type Log struct {
	Debug   bool `fig:"debug"`
	NoColor bool `fig:"no_color"`
	JSON    bool `fig:"json"`
}

// Load reads the configuration. An explicit path must exist; otherwise
// stretchaudio.yaml is looked up in the usual directories and defaults
// apply when it is absent. Environment variables with the prefix
// STRETCHAUDIO_ override file values, e.g. STRETCHAUDIO_RENDER_CHUNK_FRAMES.
func Load(path string) (Config, error) {
	var conf Config

	if path != "" {
		err := fig.Load(&conf,
			fig.File(filepath.Base(path)),
			fig.Dirs(filepath.Dir(path)),
			fig.UseEnv(EnvPrefix),
		)
		return conf, err
	}

	dirs := []string{".", "configs"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".stretchaudio"))
	}
	err := fig.Load(&conf, fig.File(FileName), fig.Dirs(dirs...), fig.UseEnv(EnvPrefix))
	if errors.Is(err, fig.ErrFileNotFound) {
		conf = Config{}
		err = fig.Load(&conf, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
	}
	return conf, err
}

// AddFlags binds command line overrides to the loaded values
func (c *Config) AddFlags(fs *pflag.FlagSet) *Config {
	fs.IntVar(&c.Render.ChunkFrames, "chunk-frames", c.Render.ChunkFrames, "Frames per render chunk (at least 512)")
	fs.IntVar(&c.Render.RetryLimit, "retry-limit", c.Render.RetryLimit, "Transient render retries before giving up")
	fs.BoolVar(&c.Log.Debug, "debug", c.Log.Debug, "Enable debug logging")
	fs.BoolVar(&c.Log.NoColor, "no-color", c.Log.NoColor, "Disable colored log output")
	fs.BoolVar(&c.Log.JSON, "log-json", c.Log.JSON, "Write logs as JSON lines")
	return c
}

// StretchOptions converts the render settings for the stretch package
func (c Config) StretchOptions(log *zerolog.Logger) stretch.Options {
	return stretch.Options{
		MaxFrames:     c.Render.ChunkFrames,
		RetryLimit:    c.Render.RetryLimit,
		RetryInterval: c.Render.RetryInterval,
		Logger:        log,
	}
}
