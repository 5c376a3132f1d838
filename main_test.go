package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"drmonitor/internal/config"
	"drmonitor/internal/supervisor"
)

func TestSupervisorOptions(t *testing.T) {
	opts := config.Options{
		Host:            "0.0.0.0",
		Port:            9000,
		SampleThreshold: 100,
		OnlyChannel:     "CH1 T",
		MetricsListen:   ":9090",
		Watch:           true,
	}
	opts.Args.Path = "/data/logs"

	want := supervisor.Options{
		Parent:          "/data/logs",
		Addr:            "0.0.0.0:9000",
		SampleThreshold: 100,
		OnlyChannel:     "CH1 T",
		Watch:           true,
		MetricsListen:   ":9090",
	}
	if diff := cmp.Diff(want, supervisorOptions(opts)); diff != "" {
		t.Fatalf("supervisorOptions() mismatch (-want +got):\n%s", diff)
	}
}
