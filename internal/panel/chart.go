package panel

import (
	"image"
	"image/color"
	"math"
)

// minChartRange keeps a flat series from filling the whole chart height.
const minChartRange = 10.0

// chartPadding is added above and below the data range, as a fraction.
const chartPadding = 0.1

// intAbs returns the absolute value of an integer.
func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// drawSparkline draws values left to right inside r, oldest first.
// Nothing is drawn outside r.
func drawSparkline(img *image.RGBA, values []float64, r image.Rectangle, c color.RGBA) {
	if len(values) == 0 || r.Empty() {
		return
	}

	lo, hi := dataRange(values)

	var prevX, prevY int
	for i, v := range values {
		x := indexToX(i, len(values), r)
		y := valueToY(v, lo, hi, r)
		if i == 0 {
			setPixel(img, x, y, r, c)
		} else {
			drawLine(img, prevX, prevY, x, y, r, c)
		}
		prevX, prevY = x, y
	}
}

// dataRange returns the padded min and max of values.
func dataRange(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	span := hi - lo
	if span < minChartRange {
		extra := (minChartRange - span) / 2
		lo -= extra
		hi += extra
		span = minChartRange
	}

	pad := span * chartPadding
	return lo - pad, hi + pad
}

// indexToX spreads n samples across the width of r.
func indexToX(i, n int, r image.Rectangle) int {
	if n <= 1 {
		return r.Min.X + r.Dx()/2
	}
	return r.Min.X + int(math.Round(float64(i)/float64(n-1)*float64(r.Dx()-1)))
}

// valueToY maps v into r, higher values nearer the top.
func valueToY(v, lo, hi float64, r image.Rectangle) int {
	if hi <= lo {
		return r.Min.Y + r.Dy()/2
	}
	v = math.Max(lo, math.Min(hi, v))
	norm := (v - lo) / (hi - lo)
	return r.Max.Y - 1 - int(math.Round(norm*float64(r.Dy()-1)))
}

// drawLine is Bresenham's line, clipped to r.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, r image.Rectangle, c color.RGBA) {
	dx := intAbs(x1 - x0)
	dy := -intAbs(y1 - y0)
	sx := 1
	if x0 >= x1 {
		sx = -1
	}
	sy := 1
	if y0 >= y1 {
		sy = -1
	}
	err := dx + dy

	x, y := x0, y0
	for {
		setPixel(img, x, y, r, c)
		if x == x1 && y == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func setPixel(img *image.RGBA, x, y int, r image.Rectangle, c color.RGBA) {
	if image.Pt(x, y).In(r) {
		img.SetRGBA(x, y, c)
	}
}
