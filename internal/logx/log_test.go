package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"ALL":     zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v; want %v", in, got, want)
		}
	}
}

func TestComponentTagsEvents(t *testing.T) {
	prev := Log
	defer func() { Log = prev; zerolog.SetGlobalLevel(zerolog.InfoLevel) }()

	var buf bytes.Buffer
	ConfigureJSON("debug", &buf)
	l := Component("bridge")
	l.Info().Msg("hello")

	var ev map[string]any
	if err := json.Unmarshal(buf.Bytes(), &ev); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, buf.String())
	}
	if ev["component"] != "bridge" || ev["message"] != "hello" {
		t.Fatalf("unexpected event: %v", ev)
	}
}
