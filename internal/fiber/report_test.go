package fiber

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestFormatSummary(t *testing.T) {
	got := FormatSummary(425.531914, []float64{425.5319, 400, 12.25})
	want := "Mean diameter: 425.53 nm\n\nMeasured diameters (nm): [425.5319, 400.0, 12.25]"
	if got != want {
		t.Errorf("FormatSummary:\n got %q\nwant %q", got, want)
	}
}

func TestFormatList(t *testing.T) {
	tests := []struct {
		in   []float64
		want string
	}{
		{nil, "[]"},
		{[]float64{1}, "[1.0]"},
		{[]float64{0.0001, 1234.5678}, "[0.0001, 1234.5678]"},
	}
	for _, tt := range tests {
		if got := FormatList(tt.in); got != tt.want {
			t.Errorf("FormatList(%v): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResult_SummaryAndPreview(t *testing.T) {
	result, err := NewAnalyzer(DefaultOptions()).Analyze(context.Background(), fourFibers(), 800, 47)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	summary := result.Summary()
	if !strings.HasPrefix(summary, "Mean diameter: 425.53 nm\n\n") {
		t.Errorf("summary header: %q", summary)
	}
	if !strings.HasSuffix(summary, "[425.5319, 425.5319, 425.5319, 425.5319]") {
		t.Errorf("summary list: %q", summary)
	}

	p := result.Preview(0)
	if p.Bounds().Dx() != DefaultPreviewSize || p.Bounds().Dy() != DefaultPreviewSize {
		t.Errorf("preview size: got %v, want 400x400", p.Bounds())
	}
	if s, err := result.PreviewBase64(100); err != nil || s == "" {
		t.Errorf("PreviewBase64: %q, %v", s, err)
	}
}

func TestResult_JSON(t *testing.T) {
	result, err := NewAnalyzer(DefaultOptions()).Analyze(context.Background(), fourFibers(), 800, 47)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	for _, key := range []string{"run_id", "mean_diameter_nm", "measurements_nm", "quadrants"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON missing %q", key)
		}
	}
	if _, ok := decoded["Annotated"]; ok {
		t.Error("annotated image should not be serialized")
	}
	quads := decoded["quadrants"].([]any)
	first := quads[0].(map[string]any)
	if _, ok := first["mean_um"]; !ok {
		t.Error("quadrant stats should be inlined")
	}
}
