package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"

	"github.com/ironsheep/fiber-gauge-mcp/internal/config"
)

// writeMicrograph writes a black 800x800 PNG with a filled 19x19 white square
// in each quadrant.
func writeMicrograph(t *testing.T, dir string) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 800, 800))
	for y := 0; y < 800; y++ {
		for x := 0; x < 800; x++ {
			img.Set(x, y, color.Black)
		}
	}
	for _, c := range []image.Point{{200, 200}, {600, 200}, {200, 600}, {600, 600}} {
		for y := c.Y - 9; y < c.Y+10; y++ {
			for x := c.X - 9; x < c.X+10; x++ {
				img.Set(x, y, color.White)
			}
		}
	}

	path := filepath.Join(dir, "micrograph.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

// isolate runs the test in an empty directory with no fiber-gauge
// environment overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{config.EnvConfig, config.EnvCutoff, config.EnvPPM, config.EnvLogLevel, config.EnvDetector} {
		t.Setenv(key, "")
	}
	return dir
}

func TestParseAnalyzeFlags(t *testing.T) {
	var stderr bytes.Buffer
	f, err := parseAnalyzeFlags([]string{"-cutoff", "700", "-json", "img.png"}, &stderr)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if f.imagePath != "img.png" || f.cutoff != 700 || !f.asJSON {
		t.Errorf("got %+v", f)
	}
	if !f.set["cutoff"] || f.set["ppm"] {
		t.Errorf("set flags: got %v", f.set)
	}
}

func TestParseAnalyzeFlags_Errors(t *testing.T) {
	var stderr bytes.Buffer
	if _, err := parseAnalyzeFlags(nil, &stderr); err == nil {
		t.Error("expected an error without an image argument")
	}
	if _, err := parseAnalyzeFlags([]string{"a.png", "b.png"}, &stderr); err == nil {
		t.Error("expected an error with two image arguments")
	}
	if _, err := parseAnalyzeFlags([]string{"-h"}, &stderr); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("got %v, want flag.ErrHelp", err)
	}
	if !strings.Contains(stderr.String(), "Usage: fiber-gauge analyze") {
		t.Error("usage should be printed")
	}
}

func TestAnalyzeFlags_Apply(t *testing.T) {
	cfg := config.DefaultConfig()
	f := &analyzeFlags{ppm: 100, cutoff: 5, set: map[string]bool{"ppm": true}}
	if err := f.apply(cfg); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if cfg.Analysis.PixelsPerMicrometer != 100 {
		t.Errorf("ppm: got %v, want 100", cfg.Analysis.PixelsPerMicrometer)
	}
	if cfg.Analysis.Cutoff != 872 {
		t.Errorf("unset cutoff flag changed the config: %d", cfg.Analysis.Cutoff)
	}

	f = &analyzeFlags{cutoff: 0, set: map[string]bool{"cutoff": true}}
	if err := f.apply(config.DefaultConfig()); err == nil {
		t.Error("an explicit zero cutoff should fail validation")
	}
}

func TestRunAnalyze_Summary(t *testing.T) {
	dir := isolate(t)
	path := writeMicrograph(t, dir)
	outPath := filepath.Join(dir, "annotated.png")

	var stdout, stderr bytes.Buffer
	err := runAnalyze(context.Background(), []string{"-cutoff", "800", "-out", outPath, path}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("runAnalyze failed: %v\n%s", err, stderr.String())
	}

	want := "Mean diameter: 425.53 nm\n\nMeasured diameters (nm): [425.5319, 425.5319, 425.5319, 425.5319]\n"
	if stdout.String() != want {
		t.Errorf("output:\ngot  %q\nwant %q", stdout.String(), want)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("annotated image not written: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 800 || cfg.Height != 800 {
		t.Errorf("annotated size: got %dx%d, want 800x800", cfg.Width, cfg.Height)
	}
}

func TestRunAnalyze_JSON(t *testing.T) {
	dir := isolate(t)
	path := writeMicrograph(t, dir)

	var stdout, stderr bytes.Buffer
	err := runAnalyze(context.Background(), []string{"-cutoff", "800", "-ppm", "1000", "-json", path}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("runAnalyze failed: %v\n%s", err, stderr.String())
	}

	var out struct {
		MeanDiameterNm float64   `json:"mean_diameter_nm"`
		Measurements   []float64 `json:"measurements_nm"`
		RunID          string    `json:"run_id"`
	}
	if err := jsoniter.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(out.Measurements) != 4 || out.Measurements[0] != 20 {
		t.Errorf("measurements: got %v", out.Measurements)
	}
	if out.RunID == "" {
		t.Error("run_id missing")
	}
}

func TestRunAnalyze_ConfigFile(t *testing.T) {
	dir := isolate(t)
	path := writeMicrograph(t, dir)

	cfg := config.DefaultConfig()
	cfg.Analysis.Cutoff = 800
	cfg.Analysis.PixelsPerMicrometer = 1000
	cfgPath := filepath.Join(dir, "custom.yaml")
	if err := config.SaveConfig(cfg, cfgPath); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := runAnalyze(context.Background(), []string{"-config", cfgPath, path}, &stdout, &stderr); err != nil {
		t.Fatalf("runAnalyze failed: %v\n%s", err, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "Mean diameter: 20.00 nm") {
		t.Errorf("output: got %q", stdout.String())
	}
}

func TestRunAnalyze_Errors(t *testing.T) {
	dir := isolate(t)
	path := writeMicrograph(t, dir)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"cutoff beyond image", []string{path}, "cutoff 872"},
		{"negative ppm", []string{"-ppm", "-3", path}, "PixelsPerMicrometer"},
		{"missing file", []string{filepath.Join(dir, "missing.png")}, "failed to open image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := runAnalyze(context.Background(), tt.args, &stdout, &stderr)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
			if stdout.Len() != 0 {
				t.Errorf("nothing should be printed on failure, got %q", stdout.String())
			}
		})
	}
}

func TestPrintVersionAndUsage(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf)
	if !strings.HasPrefix(buf.String(), "fiber-gauge-mcp dev") {
		t.Errorf("version: got %q", buf.String())
	}

	buf.Reset()
	printUsage(&buf)
	for _, want := range []string{"analyze", config.EnvConfig, "-cutoff"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("usage does not mention %s", want)
		}
	}
}
