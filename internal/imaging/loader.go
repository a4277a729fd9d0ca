package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// LoadError reports an image that could not be opened or decoded.
//
// It is the only fatal outcome of loading: missing or malformed orientation
// metadata never produces a LoadError.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load image %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is, or wraps, a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Loaded is a decoded image with EXIF orientation already applied.
//
// Image is laid out the way a conforming viewer displays the file. RawWidth
// and RawHeight are the stored pixel dimensions before the orientation
// transform, so a caller can tell when a rotation swapped the axes.
type Loaded struct {
	Image       image.Image
	Width       int
	Height      int
	RawWidth    int
	RawHeight   int
	Orientation int
	Format      string
	Path        string
}

// Load reads path, decodes it and applies the EXIF orientation transform.
//
// Orientation codes 2-8 are applied as flip/rotate combinations; code 1, an
// absent tag, or unreadable EXIF data leave the pixels untouched. Any failure
// to open or decode the file itself is returned as a *LoadError.
func Load(path string) (*Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return Decode(path, data)
}

// Decode is Load for bytes already in memory. name is used for error messages.
func Decode(name string, data []byte) (*Loaded, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Path: name, Err: err}
	}
	raw := img.Bounds()
	if raw.Dx() <= 0 || raw.Dy() <= 0 {
		return nil, &LoadError{Path: name, Err: errors.New("image has no pixels")}
	}

	orientation := readOrientation(data)
	oriented := ApplyOrientation(img, orientation)
	b := oriented.Bounds()

	return &Loaded{
		Image:       oriented,
		Width:       b.Dx(),
		Height:      b.Dy(),
		RawWidth:    raw.Dx(),
		RawHeight:   raw.Dy(),
		Orientation: orientation,
		Format:      format,
		Path:        name,
	}, nil
}

// readOrientation returns the EXIF orientation code, or 1 when it is absent
// or cannot be parsed.
func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// ApplyOrientation returns img transformed for the given EXIF orientation code.
//
//	2: mirror horizontally
//	3: rotate 180
//	4: mirror vertically
//	5: transpose (mirror horizontally, then rotate 90 counter-clockwise)
//	6: rotate 90 clockwise
//	7: transverse (mirror horizontally, then rotate 90 clockwise)
//	8: rotate 90 counter-clockwise
//
// Any other code returns img unchanged.
func ApplyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// ImageCache provides thread-safe caching of loaded images to avoid redundant
// disk reads and EXIF decoding.
//
// Cached entries are immutable; callers must not draw into Loaded.Image.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*Loaded
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*Loaded),
	}
}

// Load retrieves an image from the cache or loads it from disk if not cached.
func (c *ImageCache) Load(path string) (*Loaded, error) {
	c.mu.RLock()
	if l, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return l, nil
	}
	c.mu.RUnlock()

	l, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = l
	c.mu.Unlock()

	return l, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*Loaded)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width and Height are the display dimensions after EXIF orientation.
	Width  int `json:"width"`
	Height int `json:"height"`

	// RawWidth and RawHeight are the stored dimensions before orientation.
	RawWidth  int `json:"raw_width"`
	RawHeight int `json:"raw_height"`

	// Orientation is the EXIF orientation code (1 when absent).
	Orientation int `json:"orientation"`

	// Rotated is true when the orientation transform swapped the axes.
	Rotated bool `json:"rotated"`

	// Format is the decoder that read the file ("png", "jpeg", ...).
	Format string `json:"format"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`

	// Name is the base file name.
	Name string `json:"name"`
}

// LoadImageInfo loads an image through the cache and describes it.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	l, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &ImageInfo{
		Width:         l.Width,
		Height:        l.Height,
		RawWidth:      l.RawWidth,
		RawHeight:     l.RawHeight,
		Orientation:   l.Orientation,
		Rotated:       l.Width != l.RawWidth || l.Height != l.RawHeight,
		Format:        strings.ToLower(l.Format),
		FileSizeBytes: stat.Size(),
		Name:          filepath.Base(path),
	}, nil
}
