package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings is the YAML settings file. Zero values leave the option unset.
type Settings struct {
	Path            string `yaml:"path,omitempty"`
	Host            string `yaml:"host,omitempty"`
	Port            int    `yaml:"port,omitempty"`
	SampleThreshold int    `yaml:"sample_threshold,omitempty"`
	OnlyChannel     string `yaml:"only_channel,omitempty"`
	MetricsListen   string `yaml:"metrics_listen,omitempty"`
	Watch           bool   `yaml:"watch,omitempty"`
	TUI             bool   `yaml:"tui,omitempty"`
	LogToFile       bool   `yaml:"log_to_file,omitempty"`
	Debug           bool   `yaml:"debug,omitempty"`
}

func SettingsPath() (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "drmonitor", "settings.yaml"), nil
}

func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func SaveSettings(path string, settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// MergeOptionsWithSettings fills every option the command line and the
// environment left unset from the saved settings.
func MergeOptionsWithSettings(cli Options, saved Settings) Options {
	if strings.TrimSpace(cli.Args.Path) == "" {
		cli.Args.Path = saved.Path
	}
	if strings.TrimSpace(cli.Host) == "" {
		cli.Host = saved.Host
	}
	if cli.Port == 0 {
		cli.Port = saved.Port
	}
	if cli.SampleThreshold == 0 {
		cli.SampleThreshold = saved.SampleThreshold
	}
	if strings.TrimSpace(cli.OnlyChannel) == "" {
		cli.OnlyChannel = saved.OnlyChannel
	}
	if strings.TrimSpace(cli.MetricsListen) == "" {
		cli.MetricsListen = saved.MetricsListen
	}
	if !cli.Watch {
		cli.Watch = saved.Watch
	}
	if !cli.TUI {
		cli.TUI = saved.TUI
	}
	if !cli.LogToFile {
		cli.LogToFile = saved.LogToFile
	}
	if !cli.Debug {
		cli.Debug = saved.Debug
	}
	return cli
}

func SettingsFromOptions(opts Options) Settings {
	return Settings{
		Path:            strings.TrimSpace(opts.Args.Path),
		Host:            strings.TrimSpace(opts.Host),
		Port:            opts.Port,
		SampleThreshold: opts.SampleThreshold,
		OnlyChannel:     opts.OnlyChannel,
		MetricsListen:   strings.TrimSpace(opts.MetricsListen),
		Watch:           opts.Watch,
		TUI:             opts.TUI,
		LogToFile:       opts.LogToFile,
		Debug:           opts.Debug,
	}
}
