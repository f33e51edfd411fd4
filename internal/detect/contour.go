// Package detect extracts acoustic events - tonal whistles, frequency
// chirps, and echolocation click trains - from decoded recordings.
package detect

// contour is a ridge being grown across spectrogram frames. Kept in an
// index-addressed arena so continuation checks walk only active
// entries instead of rescanning every contour ever started.
type contour struct {
	frames []int // spectrogram frame indices
	bins   []int // frequency bin indices
	powers []float64
	closed bool
}

func (c *contour) lastFrame() int { return c.frames[len(c.frames)-1] }
func (c *contour) lastBin() int   { return c.bins[len(c.bins)-1] }

func (c *contour) extend(frame, bin int, power float64) {
	c.frames = append(c.frames, frame)
	c.bins = append(c.bins, bin)
	c.powers = append(c.powers, power)
}

// contourArena tracks in-progress contours by index with explicit
// active/closed status.
type contourArena struct {
	contours []*contour
	active   []int
}

func newContourArena() *contourArena {
	return &contourArena{}
}

// start opens a new contour seeded with one point.
func (a *contourArena) start(frame, bin int, power float64) {
	c := &contour{}
	c.extend(frame, bin, power)
	a.contours = append(a.contours, c)
	a.active = append(a.active, len(a.contours)-1)
}

// closeStale closes every active contour whose last point is older than
// frame-1 and therefore can no longer be extended.
func (a *contourArena) closeStale(frame int) {
	live := a.active[:0]
	for _, idx := range a.active {
		c := a.contours[idx]
		if c.lastFrame() < frame-1 {
			c.closed = true
		} else {
			live = append(live, idx)
		}
	}
	a.active = live
}

// tryExtend extends the first active contour that ended on the previous
// frame within tol bins of the candidate. Reports whether the candidate
// was consumed.
func (a *contourArena) tryExtend(frame, bin int, power float64, tol int) bool {
	for _, idx := range a.active {
		c := a.contours[idx]
		if c.lastFrame() != frame-1 {
			continue
		}
		d := bin - c.lastBin()
		if d < 0 {
			d = -d
		}
		if d < tol {
			c.extend(frame, bin, power)
			return true
		}
	}
	return false
}

// all returns every contour started during the pass, ordered by creation.
func (a *contourArena) all() []*contour {
	return a.contours
}
