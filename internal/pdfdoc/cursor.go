package pdfdoc

// Cursor is the write position on the current page. Y only grows within a page and is
// reset to Top whenever a new page starts. Bottom is the first y value of the reserved
// footer band.
type Cursor struct {
	Page   int
	X      float64
	Y      float64
	Left   float64
	Top    float64
	Width  float64
	Bottom float64
}

// Fits reports whether a block of the given height fits above the footer band.
func (c Cursor) Fits(height float64) bool {
	return c.Page > 0 && c.Y+height <= c.Bottom
}

func (c *Cursor) Advance(height float64) {
	c.Y += height
}

// Remaining is the vertical space left before the footer band.
func (c Cursor) Remaining() float64 {
	return c.Bottom - c.Y
}
