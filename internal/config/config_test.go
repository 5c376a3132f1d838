package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func isolateSettings(t *testing.T) {
	t.Helper()
	root := t.TempDir()
	if runtime.GOOS == "windows" {
		t.Setenv("AppData", root)
	} else {
		t.Setenv("XDG_CONFIG_HOME", root)
		t.Setenv("HOME", root)
	}
}

func TestParseOptions_Flags(t *testing.T) {
	opts, err := ParseOptions([]string{"--host", "0.0.0.0", "-p", "9000", "-l", "100", "--only-channel", "CH1 T", "--debug", "/srv/logs"})
	if err != nil {
		t.Fatalf("ParseOptions() error = %v", err)
	}
	if opts.Host != "0.0.0.0" || opts.Port != 9000 || opts.SampleThreshold != 100 {
		t.Fatalf("opts = %#v", opts)
	}
	if opts.OnlyChannel != "CH1 T" || !opts.Debug || opts.Path() != "/srv/logs" {
		t.Fatalf("opts = %#v", opts)
	}
	if opts.Addr() != "0.0.0.0:9000" {
		t.Fatalf("Addr() = %q", opts.Addr())
	}
}

func TestParseOptions_EnvironmentBelowFlags(t *testing.T) {
	t.Setenv("DRMONITOR_PORT", "9100")
	t.Setenv("DRMONITOR_HOST", "10.0.0.2")
	t.Setenv(PathEnv, "/from/env")

	opts, err := ParseOptions([]string{"--host", "10.0.0.1"})
	if err != nil {
		t.Fatalf("ParseOptions() error = %v", err)
	}
	if opts.Port != 9100 {
		t.Fatalf("Port = %d, want env value", opts.Port)
	}
	if opts.Host != "10.0.0.1" {
		t.Fatalf("Host = %q, want flag value", opts.Host)
	}
	if opts.Path() != "/from/env" {
		t.Fatalf("Path() = %q, want env value", opts.Path())
	}
}

func TestParseOptions_BadFlag(t *testing.T) {
	if _, err := ParseOptions([]string{"-p", "eighty"}); err == nil {
		t.Fatalf("ParseOptions() expected error for non-numeric port")
	}
}

func TestLoad_SettingsFileUnderFlags(t *testing.T) {
	isolateSettings(t)
	settingsPath := filepath.Join(t.TempDir(), "settings.yaml")
	if err := SaveSettings(settingsPath, Settings{Path: "/srv/saved", Port: 7000, SampleThreshold: 50}); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	opts, path, err := Load([]string{"--config", settingsPath, "-p", "7001"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != settingsPath {
		t.Fatalf("settings path = %q", path)
	}
	if opts.Port != 7001 || opts.SampleThreshold != 50 || opts.Path() != "/srv/saved" {
		t.Fatalf("opts = %#v", opts)
	}
	if opts.Host != DefaultHost {
		t.Fatalf("Host = %q, want default", opts.Host)
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	isolateSettings(t)

	opts, _, err := Load([]string{"/srv/logs"})
	if err != nil {
		t.Fatalf("Load() without settings file error = %v", err)
	}
	if opts.Port != DefaultPort || opts.SampleThreshold != DefaultSampleThreshold || opts.Host != DefaultHost {
		t.Fatalf("defaults not applied: %#v", opts)
	}

	missing := filepath.Join(t.TempDir(), "absent.yaml")
	if _, _, err := Load([]string{"--config", missing, "/srv/logs"}); err == nil {
		t.Fatalf("Load() expected error for missing --config file")
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	valid := func() Options {
		opts := ApplyDefaults(Options{})
		opts.Args.Path = dir
		return opts
	}

	tests := []struct {
		name   string
		mutate func(*Options)
		want   error
	}{
		{name: "valid", mutate: func(*Options) {}},
		{name: "missing path", mutate: func(o *Options) { o.Args.Path = "" }, want: ErrPathRequired},
		{name: "not a directory", mutate: func(o *Options) { o.Args.Path = file }, want: ErrNotDirectory},
		{name: "negative threshold", mutate: func(o *Options) { o.SampleThreshold = -1 }, want: ErrSampleThreshold},
		{name: "port too large", mutate: func(o *Options) { o.Port = 70000 }, want: ErrPort},
		{name: "negative port", mutate: func(o *Options) { o.Port = -1 }, want: ErrPort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid()
			tt.mutate(&opts)
			err := Validate(opts)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}

	opts := valid()
	opts.Args.Path = filepath.Join(dir, "absent")
	if err := Validate(opts); err == nil {
		t.Fatalf("Validate() expected error for missing directory")
	}
}
