package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/image/bmp"
)

// writeImage encodes img into dir/name with enc and returns the path.
func writeImage(t *testing.T, dir, name string, img image.Image, enc func(io.Writer, image.Image) error) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := enc(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", name, err)
	}
	return path
}

func encodeJPEG(w io.Writer, img image.Image) error { return jpeg.Encode(w, img, nil) }

// grayMicrograph returns a dark single-channel image with one bright band.
func grayMicrograph(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := height / 3; y < height/3+4; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: 230})
		}
	}
	return img
}

// createInMemoryImage creates a solid color image
func createInMemoryImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestImageCache_LoadCaches(t *testing.T) {
	cache := NewImageCache()
	path := writeImage(t, t.TempDir(), "sem.png", grayMicrograph(100, 80), png.Encode)

	first, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b := first.Bounds(); b.Dx() != 100 || b.Dy() != 80 {
		t.Errorf("dimensions: got %dx%d, want 100x80", b.Dx(), b.Dy())
	}

	// The cached image survives the file going away.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	second, err := cache.Load(path)
	if err != nil {
		t.Fatalf("cached Load failed: %v", err)
	}
	if first != second {
		t.Error("second Load did not return the cached image")
	}
	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}
}

func TestImageCache_LoadErrors(t *testing.T) {
	cache := NewImageCache()
	dir := t.TempDir()

	_, err := cache.Load(filepath.Join(dir, "missing.png"))
	if err == nil || errors.Is(err, ErrDecodeFailure) {
		t.Errorf("missing file: got %v, want a non-decode error", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file should unwrap to os.ErrNotExist, got %v", err)
	}

	garbage := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Load(garbage); !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("garbage file: got %v, want ErrDecodeFailure", err)
	}
	if cache.Len() != 0 {
		t.Error("failed loads must not be cached")
	}
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, grayMicrograph(20, 10)); err != nil {
		t.Fatal(err)
	}
	img, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Bounds().Dx() != 20 {
		t.Errorf("width: got %d, want 20", img.Bounds().Dx())
	}

	if _, err := Decode(bytes.NewReader(nil)); !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("empty input: got %v, want ErrDecodeFailure", err)
	}
}

func TestCheckBuffer(t *testing.T) {
	if err := CheckBuffer(nil); !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("nil buffer: got %v, want ErrDecodeFailure", err)
	}
	if err := CheckBuffer(image.NewRGBA(image.Rect(0, 0, 0, 10))); !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("empty buffer: got %v, want ErrDecodeFailure", err)
	}
	if err := CheckBuffer(image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Errorf("valid buffer: unexpected error %v", err)
	}
}

func TestImageCache_EvictRereads(t *testing.T) {
	cache := NewImageCache()
	dir := t.TempDir()
	path := writeImage(t, dir, "sem.png", grayMicrograph(40, 30), png.Encode)

	if _, err := cache.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	writeImage(t, dir, "sem.png", grayMicrograph(60, 50), png.Encode)

	img, _ := cache.Load(path)
	if img.Bounds().Dx() != 40 {
		t.Error("Load should serve the cached image until evicted")
	}

	cache.Evict(path)
	img, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load after Evict failed: %v", err)
	}
	if img.Bounds().Dx() != 60 {
		t.Errorf("width after Evict: got %d, want 60", img.Bounds().Dx())
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Clear left %d images", cache.Len())
	}
	cache.Evict(filepath.Join(dir, "never-loaded.png"))
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	path := writeImage(t, t.TempDir(), "sem.png", grayMicrograph(50, 50), png.Encode)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Load error: %v", err)
	}
}

func TestImageCache_Info(t *testing.T) {
	dir := t.TempDir()
	color8 := createInMemoryImage(30, 20, color.RGBA{10, 20, 30, 255})

	tests := []struct {
		name      string
		path      string
		format    string
		grayscale bool
		depth     int
	}{
		{"gray png", writeImage(t, dir, "a.png", grayMicrograph(30, 20), png.Encode), "png", true, 8},
		{"gray16 png", writeImage(t, dir, "b.png", image.NewGray16(image.Rect(0, 0, 30, 20)), png.Encode), "png", true, 16},
		{"color png", writeImage(t, dir, "c.png", color8, png.Encode), "png", false, 8},
		{"jpeg", writeImage(t, dir, "d.jpg", grayMicrograph(30, 20), encodeJPEG), "jpeg", true, 8},
		{"bmp", writeImage(t, dir, "e.bmp", color8, bmp.Encode), "bmp", false, 8},
		// The extension does not decide the format.
		{"png named tif", writeImage(t, dir, "f.tif", color8, png.Encode), "png", false, 8},
	}

	cache := NewImageCache()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := cache.Info(tt.path)
			if err != nil {
				t.Fatalf("Info failed: %v", err)
			}
			if info.Width != 30 || info.Height != 20 {
				t.Errorf("dimensions: got %dx%d, want 30x20", info.Width, info.Height)
			}
			if info.Format != tt.format {
				t.Errorf("Format: got %s, want %s", info.Format, tt.format)
			}
			if info.Grayscale != tt.grayscale || info.BitDepth != tt.depth {
				t.Errorf("got grayscale=%v depth=%d, want %v/%d", info.Grayscale, info.BitDepth, tt.grayscale, tt.depth)
			}
			if info.FileSizeBytes <= 0 || info.Path != tt.path {
				t.Errorf("got path %q size %d", info.Path, info.FileSizeBytes)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	src := createInMemoryImage(12, 8, color.RGBA{0, 255, 0, 255})
	cache := NewImageCache()

	for _, ext := range []string{".png", ".jpg", ".bmp"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out"+ext)
			if err := Save(src, path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			img, err := cache.Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if img.Bounds().Dx() != 12 || img.Bounds().Dy() != 8 {
				t.Errorf("got bounds %v, want 12x8", img.Bounds())
			}
		})
	}
}

func TestSave_UnknownExtension(t *testing.T) {
	err := Save(createInMemoryImage(4, 4, color.White), filepath.Join(t.TempDir(), "out.xyz"))
	if err == nil {
		t.Error("expected an error for an unsupported extension")
	}
}
