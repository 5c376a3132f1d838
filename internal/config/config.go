// Package config resolves the run options from flags, the environment, a
// .env file and the YAML settings file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

const (
	DefaultHost            = "localhost"
	DefaultPort            = 8080
	DefaultSampleThreshold = 4000

	PathEnv = "DRMONITOR_PATH"
)

type Options struct {
	Host            string `long:"host" env:"DRMONITOR_HOST" description:"Hostname or IP address to bind to (default: localhost)"`
	Port            int    `short:"p" long:"port" env:"DRMONITOR_PORT" description:"Port to serve from (default: 8080)"`
	SampleThreshold int    `short:"l" long:"sample-threshold" env:"DRMONITOR_SAMPLE_THRESHOLD" value-name:"N" description:"Approximate upper limit of rows in a response before rows are sampled (default: 4000)"`
	OnlyChannel     string `long:"only-channel" env:"DRMONITOR_ONLY_CHANNEL" description:"Only ingest files whose name starts with this channel, to speed up debugging"`
	MetricsListen   string `long:"metrics-listen" env:"DRMONITOR_METRICS_LISTEN" description:"Serve Prometheus metrics on this address (e.g. :9090)"`
	Watch           bool   `long:"watch" env:"DRMONITOR_WATCH" description:"Log date directory changes as they happen"`
	ConfigFile      string `long:"config" env:"DRMONITOR_CONFIG" description:"YAML settings file (default: drmonitor/settings.yaml in the user config directory)"`
	SaveSettings    bool   `long:"save-settings" description:"Write the effective options to the settings file and exit"`
	TUI             bool   `long:"tui" env:"DRMONITOR_TUI" description:"Show the terminal dashboard"`
	LogToFile       bool   `long:"log-to-file" env:"DRMONITOR_LOG_TO_FILE" description:"Persist a JSONL session log in the user cache directory"`
	Debug           bool   `long:"debug" env:"DRMONITOR_DEBUG" description:"Enable verbose debug output"`

	Args struct {
		Path string `positional-arg-name:"path" description:"Directory containing the dated log directories"`
	} `positional-args:"yes"`
}

// Path is the parent log directory.
func (o Options) Path() string {
	return o.Args.Path
}

// Addr is the HTTP listen address.
func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// ParseOptions parses args after loading .env from the working directory.
// It does not read the settings file or apply defaults; see Load.
func ParseOptions(args []string) (Options, error) {
	_ = godotenv.Load()
	opts := Options{}
	parser := flags.NewParser(&opts, flags.Default)
	parser.Name = "drmonitor"
	parser.Usage = "[OPTIONS] <path>"
	parser.ShortDescription = "Serve dilution refrigerator logs for querying"
	if _, err := parser.ParseArgs(args); err != nil {
		return Options{}, err
	}
	if strings.TrimSpace(opts.Args.Path) == "" {
		opts.Args.Path = os.Getenv(PathEnv)
	}
	return opts, nil
}

// Load parses args, merges the settings file underneath and fills in
// defaults. A missing default settings file is not an error; a missing
// file named by --config is.
func Load(args []string) (Options, string, error) {
	opts, err := ParseOptions(args)
	if err != nil {
		return Options{}, "", err
	}
	path := strings.TrimSpace(opts.ConfigFile)
	explicit := path != ""
	if !explicit {
		path, err = SettingsPath()
		if err != nil {
			return ApplyDefaults(opts), "", nil
		}
	}
	saved, err := LoadSettings(path)
	switch {
	case err == nil:
		opts = MergeOptionsWithSettings(opts, saved)
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Options{}, path, fmt.Errorf("settings %s: %w", path, err)
	}
	return ApplyDefaults(opts), path, nil
}

func ApplyDefaults(opts Options) Options {
	if strings.TrimSpace(opts.Host) == "" {
		opts.Host = DefaultHost
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.SampleThreshold == 0 {
		opts.SampleThreshold = DefaultSampleThreshold
	}
	return opts
}

func Validate(opts Options) error {
	path := strings.TrimSpace(opts.Path())
	if path == "" {
		return ErrPathRequired
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("log directory is not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", path, ErrNotDirectory)
	}
	if opts.SampleThreshold <= 0 {
		return fmt.Errorf("%w: got %d", ErrSampleThreshold, opts.SampleThreshold)
	}
	if opts.Port < 1 || opts.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrPort, opts.Port)
	}
	return nil
}
