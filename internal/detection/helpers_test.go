package detection

import (
	"image"
	"image/color"

	"github.com/ironsheep/specimen-tools-mcp/internal/config"
)

// createTestImage creates a solid color test image
func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// fillRect paints r with c.
func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

// createSpecimenImage draws dark rectangles on a white background.
func createSpecimenImage(width, height int, specimens ...image.Rectangle) *image.RGBA {
	img := createTestImage(width, height, color.White)
	for _, r := range specimens {
		fillRect(img, r, color.RGBA{20, 20, 20, 255})
	}
	return img
}

func testConfig() config.Detection {
	return config.DefaultDetection()
}
