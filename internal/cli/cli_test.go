package cli

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sparques/rftrx"
	"github.com/sparques/rftrx/internal/config"
	"github.com/sparques/rftrx/internal/metrics"
	"github.com/sparques/rftrx/internal/publish"
	"github.com/sparques/rftrx/internal/recording"
	"github.com/spf13/viper"
)

const testConfig = `
mqtt:
  password: hunter2
protocols:
  - id: 10
    name: Doorbell
    sync_us: [350, 3850]
    zero_us: [350, 1050]
    one_us: [1050, 350]
    bits: 24
    repeats: 2
    delay_ms: 10
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	cfgFile = ""
	_ = replayCmd.Flags().Set("json", "false")
	_ = replayCmd.Flags().Set("transmit", "false")
	_ = encodeCmd.Flags().Set("loopback", "false")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func testCfg(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(testConfig)); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadFrom(v)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func widths(sig *rftrx.RawSignal) []uint32 {
	out := make([]uint32, sig.Number)
	for i := range out {
		out[i] = sig.Pulse(i + 1)
	}
	return out
}

func doorbellRecording(t *testing.T) string {
	t.Helper()
	proto, err := testCfg(t).FindProtocol("doorbell")
	if err != nil {
		t.Fatal(err)
	}
	var sig rftrx.RawSignal
	if err := proto.Encode(&sig, 0x5A5A5A); err != nil {
		t.Fatal(err)
	}
	rec := &recording.Recording{Name: "doorbell"}
	rec.Add(0, []uint32{400, 400, 400, 400, 400})
	rec.Add(0, widths(&sig))
	rec.Add(0, widths(&sig))

	var buf bytes.Buffer
	if err := rec.Save(&buf); err != nil {
		t.Fatal(err)
	}
	return writeFile(t, "doorbell.yaml", buf.String())
}

func TestReplay(t *testing.T) {
	cfg := writeFile(t, "rftrx.yaml", testConfig)
	out, err := execute(t, "--config", cfg, "replay", doorbellRecording(t))
	if err != nil {
		t.Fatalf("replay error = %v\n%s", err, out)
	}
	if strings.Count(out, "Doorbell;ID=5A5A5A;") != 1 {
		t.Errorf("want exactly one event, got:\n%s", out)
	}
	if !strings.Contains(out, "received=3 decoded=1 rejected=0 suppressed=1 noise=1") {
		t.Errorf("counters missing from output:\n%s", out)
	}
}

func TestReplayJSON(t *testing.T) {
	cfg := writeFile(t, "rftrx.yaml", testConfig)
	out, err := execute(t, "--config", cfg, "replay", "--json", doorbellRecording(t))
	if err != nil {
		t.Fatalf("replay error = %v\n%s", err, out)
	}
	var ev rftrx.Event
	line := strings.SplitN(out, "\n", 2)[0]
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("first line %q is not an event: %v", line, err)
	}
	if ev.Plugin != 10 || ev.Protocol != "Doorbell" {
		t.Errorf("event = %+v", ev)
	}
}

func TestReplayTransmit(t *testing.T) {
	cfg := writeFile(t, "rftrx.yaml", testConfig)
	rec := writeFile(t, "short.yaml", "trains:\n  - pulses: [500, 1000, 500]\n")
	out, err := execute(t, "--config", cfg, "replay", "--transmit", rec)
	if err != nil {
		t.Fatalf("replay error = %v\n%s", err, out)
	}
	// mark, space, mark, then the line drops: four level changes
	if !strings.Contains(out, "train 0: sent 4 edges in 2000us") {
		t.Errorf("transmit summary missing:\n%s", out)
	}
}

func TestReplayMissingFile(t *testing.T) {
	cfg := writeFile(t, "rftrx.yaml", testConfig)
	if _, err := execute(t, "--config", cfg, "replay", filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("replay of a missing file succeeded")
	}
}

func TestEncode(t *testing.T) {
	cfg := writeFile(t, "rftrx.yaml", testConfig)
	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr bool
	}{
		{
			name: "display",
			args: []string{"encode", "doorbell", "0x5a5a5a"},
			want: []string{"Pulses=50;Pulses(uSec)=350,3850,350,1050,1050,350,"},
		},
		{
			name: "loopback",
			args: []string{"encode", "Doorbell", "5921370", "--loopback"},
			want: []string{"sent ", "Doorbell;ID=5A5A5A;"},
		},
		{name: "unknown protocol", args: []string{"encode", "garage", "1"}, wantErr: true},
		{name: "bad value", args: []string{"encode", "doorbell", "x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"--config", cfg}, tt.args...)...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v\n%s", err, tt.wantErr, out)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestParams(t *testing.T) {
	cfg := writeFile(t, "rftrx.yaml", testConfig)
	t.Setenv("RFTRX_SIGNAL_MIN_RAW_PULSES", "32")
	out, err := execute(t, "--config", cfg, "params")
	if err != nil {
		t.Fatalf("params error = %v\n%s", err, out)
	}
	for _, w := range []string{"min_raw_pulses: 32", "********", "name: Doorbell"} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
	if strings.Contains(out, "hunter2") {
		t.Error("password printed")
	}
}

func TestBenchFeed(t *testing.T) {
	var events []rftrx.Event
	b, protos, err := newBench(testCfg(t), func(ev rftrx.Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatal(err)
	}
	var sig rftrx.RawSignal
	if err := protos[0].Encode(&sig, 0x123456); err != nil {
		t.Fatal(err)
	}
	pulses := widths(&sig)

	b.feed(pulses)
	b.feed(pulses)
	if len(events) != 1 || events[0].Message != "Doorbell;ID=123456;" {
		t.Fatalf("events = %+v", events)
	}
	if c := b.Status().Counters; c.Received != 2 || c.Suppressed != 1 {
		t.Errorf("counters = %+v", c)
	}
}

func TestStatusEndpoint(t *testing.T) {
	b, _, err := newBench(testCfg(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	b.feed([]uint32{400, 400, 400})

	srv := httptest.NewServer(newMux(b, publish.NewHub(), metrics.New(b)))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var st rftrx.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if !st.Scanning || st.Noise != 1 || st.Received != 1 {
		t.Errorf("status = %+v", st)
	}

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	if !strings.Contains(body.String(), "rftrx_noise_signals_total 1") {
		t.Errorf("metrics missing noise counter:\n%s", body.String())
	}
}
