// Package gallery holds the small index arithmetic behind the photo
// carousel and the reading progress bar.
package gallery

// Carousel tracks the visible photo. Index always stays in [0, Count)
// when Count > 0; an empty carousel keeps Index at 0.
type Carousel struct {
	Count int
	Index int
}

// NewCarousel returns a carousel over count photos starting at start
// (wrapped into range).
func NewCarousel(count, start int) Carousel {
	c := Carousel{Count: count}
	c.Set(start)
	return c
}

// Next advances one photo, wrapping to the first after the last.
func (c *Carousel) Next() int {
	return c.Set(c.Index + 1)
}

// Prev goes back one photo, wrapping to the last before the first.
func (c *Carousel) Prev() int {
	return c.Set(c.Index - 1)
}

// Set jumps to i modulo Count and returns the new index.
func (c *Carousel) Set(i int) int {
	if c.Count <= 0 {
		c.Index = 0
		return 0
	}
	i %= c.Count
	if i < 0 {
		i += c.Count
	}
	c.Index = i
	return i
}

// Progress returns how far a viewport has scrolled through content, as a
// percentage clamped to [0, 100]. Content that fits the viewport reads as
// fully scrolled.
func Progress(offset, total, viewport int) int {
	scrollable := total - viewport
	if scrollable <= 0 {
		return 100
	}
	pct := offset * 100 / scrollable
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
