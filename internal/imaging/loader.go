package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp" // Register BMP format decoder
)

// micrograph is a decoded file held by the cache.
type micrograph struct {
	img    image.Image
	format string
	size   int64
}

// ImageCache keeps decoded micrographs by path, so analysing the same file
// again with another cutoff or calibration skips the disk.
//
// ImageCache is safe for concurrent use by multiple goroutines. Entries stay
// until Evict or Clear; a file changed on disk is only re-read after its
// path is evicted.
type ImageCache struct {
	mu      sync.RWMutex
	entries map[string]*micrograph
}

// NewImageCache creates an empty cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		entries: make(map[string]*micrograph),
	}
}

// Load returns the decoded image at path, reading it on first use.
//
// PNG, JPEG, BMP and GIF are supported. JPEG orientation tags are applied
// so the pixel grid matches what an image viewer shows.
//
// A file that cannot be read is reported as is; contents that are not a
// decodable image, or decode to zero pixels, wrap ErrDecodeFailure.
func (c *ImageCache) Load(path string) (image.Image, error) {
	m, err := c.load(path)
	if err != nil {
		return nil, err
	}
	return m.img, nil
}

func (c *ImageCache) load(path string) (*micrograph, error) {
	c.mu.RLock()
	m, ok := c.entries[path]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	img, format, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m = &micrograph{img: img, format: format, size: int64(len(data))}

	c.mu.Lock()
	c.entries[path] = m
	c.mu.Unlock()
	return m, nil
}

// Len reports how many images are cached.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every cached image.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*micrograph)
	c.mu.Unlock()
}

// Evict drops the image cached for path, if any.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Decode reads an image from r and rejects empty rasters.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	img, _, err := decode(data)
	return img, err
}

// decode returns the image in data and the name of the decoder that
// recognised it.
func decode(data []byte) (image.Image, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	if err := CheckBuffer(img); err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// Save writes img to path. The encoder is chosen from the file extension
// (.png, .jpg, .jpeg, .bmp, .gif, .tif, .tiff).
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// ImageInfo describes a loaded micrograph.
type ImageInfo struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	// Format is the decoder that recognised the contents: "png", "jpeg",
	// "bmp" or "gif". The file extension plays no part.
	Format string `json:"format"`

	// Grayscale is true for single-channel images, the usual output of an
	// electron microscope.
	Grayscale bool `json:"grayscale"`

	// BitDepth is 8 or 16 bits per channel.
	BitDepth int `json:"bit_depth"`

	FileSizeBytes int64 `json:"file_size_bytes"`
}

// Info loads the image at path through the cache and describes it.
func (c *ImageCache) Info(path string) (*ImageInfo, error) {
	m, err := c.load(path)
	if err != nil {
		return nil, err
	}

	info := &ImageInfo{
		Path:          path,
		Width:         m.img.Bounds().Dx(),
		Height:        m.img.Bounds().Dy(),
		Format:        m.format,
		BitDepth:      8,
		FileSizeBytes: m.size,
	}
	switch m.img.(type) {
	case *image.Gray:
		info.Grayscale = true
	case *image.Gray16:
		info.Grayscale = true
		info.BitDepth = 16
	case *image.RGBA64, *image.NRGBA64:
		info.BitDepth = 16
	}
	return info, nil
}
