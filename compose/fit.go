package compose

import "math"

// Placement is where an image lands on a page, in points, with the
// origin at the lower left corner.
type Placement struct {
	X, Y          float64
	Width, Height float64
	Scale         float64
}

// Fit scales an iw×ih image to fit a pw×ph page without enlarging it and
// centers the result.
func Fit(iw, ih, pw, ph float64) Placement {
	if iw <= 0 || ih <= 0 {
		return Placement{}
	}
	scale := math.Min(math.Min(pw/iw, ph/ih), 1)
	w := iw * scale
	h := ih * scale
	return Placement{
		X:      (pw - w) / 2,
		Y:      (ph - h) / 2,
		Width:  w,
		Height: h,
		Scale:  scale,
	}
}
