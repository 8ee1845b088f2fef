package domain

// BoundingBox is a rectangle in page-normalized coordinates, where x, y,
// width, and height are all fractions of the page dimensions.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BoundingBoxFromAbsolute converts pixel coordinates to a normalized box.
// A zero-sized page yields the zero box.
func BoundingBoxFromAbsolute(x, y, width, height float64, pageWidth, pageHeight int) BoundingBox {
	if pageWidth <= 0 || pageHeight <= 0 {
		return BoundingBox{}
	}
	return BoundingBox{
		X:      x / float64(pageWidth),
		Y:      y / float64(pageHeight),
		Width:  width / float64(pageWidth),
		Height: height / float64(pageHeight),
	}
}

// Area returns the normalized area of the box.
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}
