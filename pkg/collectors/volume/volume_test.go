package volume

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const masterOn = `Simple mixer control 'Master',0
  Capabilities: pvolume pswitch pswitch-joined
  Playback channels: Front Left - Front Right
  Limits: Playback 0 - 65536
  Mono:
  Front Left: Playback 42597 [65%] [on]
  Front Right: Playback 42597 [65%] [on]
`

const masterOff = `Simple mixer control 'Master',0
  Front Left: Playback 0 [0%] [off]
  Front Right: Playback 0 [0%] [off]
`

const pcmNoSwitch = `Simple mixer control 'PCM',0
  Capabilities: pvolume
  Front Left: Playback 200 [78%] [-5.00dB]
`

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    Level
		wantErr bool
	}{
		{"unmuted", masterOn, Level{Percent: 65}, false},
		{"muted", masterOff, Level{Percent: 0, Muted: true}, false},
		{"no switch", pcmNoSwitch, Level{Percent: 78}, false},
		{"garbage", "amixer: Unable to find simple control 'Foo',0\n", Level{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parse([]byte(tt.out))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("level (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCollectRunsAmixer(t *testing.T) {
	c := New(Config{Device: "pulse", Mixer: "Speaker", Index: 1})

	var gotArgs []string
	c.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte(masterOff), nil
	}

	data, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if diff := cmp.Diff([]string{"amixer", "-D", "pulse", "sget", "Speaker,1"}, gotArgs); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
	if data != (Level{Percent: 0, Muted: true}) {
		t.Errorf("data = %v", data)
	}
	if c.Name() != "volume:pulse/Speaker,1" {
		t.Errorf("Name = %q", c.Name())
	}
}

func TestCollectFailure(t *testing.T) {
	c := New(Config{})
	c.run = func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exec: \"amixer\": executable file not found in $PATH")
	}

	data, err := c.Collect(context.Background())
	if err == nil || data != nil {
		t.Fatalf("Collect = %v, %v", data, err)
	}
	if c.Healthy() {
		t.Error("collector should be unhealthy")
	}

	c.run = func(context.Context, string, ...string) ([]byte, error) { return []byte(masterOn), nil }
	if _, err := c.Collect(context.Background()); err != nil || !c.Healthy() {
		t.Errorf("collector did not recover: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	c := New(Config{})
	if c.Name() != "volume:default/Master,0" {
		t.Errorf("Name = %q", c.Name())
	}
	if c.Interval() != defaultInterval {
		t.Errorf("Interval = %v", c.Interval())
	}
}
