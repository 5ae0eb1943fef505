package detection

import (
	"fmt"
	"image"
	"sort"
	"strings"
	"sync"

	"github.com/ironsheep/fiber-gauge-mcp/internal/imaging"
)

// NativeBackend is the name of the pure Go detector, always available.
const NativeBackend = "native"

// Detector finds the external contours of a region and returns their
// bounding boxes in the region's local coordinates, with (0, 0) at the
// top-left pixel of img.
//
// Implementations must be safe for concurrent use; the analyzer calls Detect
// from one goroutine per quadrant.
type Detector interface {
	Name() string
	Detect(img image.Image, p imaging.CannyParams) ([]Box, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Detector{
		NativeBackend: func() Detector { return nativeDetector{} },
	}
)

// Register makes a detector available under name. Registering the same name
// twice replaces the previous factory.
func Register(name string, factory func() Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = factory
}

// NewDetector returns the detector registered under name. An empty name
// selects the native detector.
func NewDetector(name string) (Detector, error) {
	if name == "" {
		name = NativeBackend
	}
	registryMu.RLock()
	factory, ok := registry[strings.ToLower(name)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown detector backend %q (available: %s)",
			imaging.ErrInvalidParameter, name, strings.Join(Backends(), ", "))
	}
	return factory(), nil
}

// Backends lists the registered detector names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type nativeDetector struct{}

func (nativeDetector) Name() string { return NativeBackend }

func (nativeDetector) Detect(img image.Image, p imaging.CannyParams) ([]Box, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return DetectBoxes(imaging.Canny(img, p)), nil
}

// DetectFromEdges returns the boxes d reports for img when the Canny map of
// img with parameters p is already at hand. The native detector traces edges
// directly; other backends run their own pipeline on img.
func DetectFromEdges(d Detector, img image.Image, edges *image.Gray, p imaging.CannyParams) ([]Box, error) {
	if _, ok := d.(nativeDetector); ok {
		return DetectBoxes(edges), nil
	}
	return d.Detect(img, p)
}

// DetectBoxes returns the bounding box of every external contour in an edge
// map, in FindExternalContours order.
func DetectBoxes(edges *image.Gray) []Box {
	contours := FindExternalContours(edges)
	boxes := make([]Box, len(contours))
	for i, c := range contours {
		boxes[i] = c.BoundingBox()
	}
	return boxes
}
