package gesture

import (
	"math"
	"time"

	"github.com/cwarden/skuld/internal/datemath"
)

// Axis is the direction pages turn along.
type Axis int

const (
	Horizontal Axis = iota
	Vertical
)

// Point is a pointer position relative to the surface's top-left corner.
type Point struct {
	X, Y float64
}

// Along returns p's coordinate on axis a.
func (p Point) Along(a Axis) float64 {
	if a == Vertical {
		return p.Y
	}
	return p.X
}

// Geometry maps pointer positions on the current page to calendar positions.
type Geometry interface {
	// Extent is the visible surface size.
	Extent() (width, height float64)
	// Axis is the paging axis used for edge navigation.
	Axis() Axis
	// DateAt returns the calendar day (or day and time) under p. ok is false
	// when p lies outside the surface; the returned time is then the nearest
	// position on it.
	DateAt(p Point) (t time.Time, ok bool)
}

// extentAlong returns g's size on its paging axis.
func extentAlong(g Geometry) float64 {
	w, h := g.Extent()
	if g.Axis() == Vertical {
		return h
	}
	return w
}

// Grid is a month-style surface: rows of seven day cells starting at First.
type Grid struct {
	First      time.Time // date of the top-left cell
	Rows       int
	CellWidth  float64
	CellHeight float64
}

func (g *Grid) Extent() (float64, float64) {
	return 7 * g.CellWidth, float64(g.Rows) * g.CellHeight
}

func (g *Grid) Axis() Axis { return Horizontal }

func (g *Grid) DateAt(p Point) (time.Time, bool) {
	col, okX := cell(p.X, g.CellWidth, 7)
	row, okY := cell(p.Y, g.CellHeight, g.Rows)
	return datemath.AddCalendarDays(datemath.StartOfDay(g.First), row*7+col), okX && okY
}

// CellOrigin returns the top-left corner of the cell showing d, and whether d
// is on the grid.
func (g *Grid) CellOrigin(d time.Time) (Point, bool) {
	n := datemath.DayDistance(g.First, d)
	if n < 0 || n >= g.Rows*7 {
		return Point{}, false
	}
	return Point{X: float64(n%7) * g.CellWidth, Y: float64(n/7) * g.CellHeight}, true
}

// Timeline is a day-view surface: Days columns of time slots, earliest slot
// at the top.
type Timeline struct {
	First      time.Time     // date of the leftmost column
	Days       int           // columns
	Slot       time.Duration // time covered by one row
	DayStart   time.Duration // time of day of the top row
	Rows       int
	DayWidth   float64
	SlotHeight float64
}

func (t *Timeline) Extent() (float64, float64) {
	return float64(t.Days) * t.DayWidth, float64(t.Rows) * t.SlotHeight
}

func (t *Timeline) Axis() Axis { return Horizontal }

func (t *Timeline) DateAt(p Point) (time.Time, bool) {
	col, okX := cell(p.X, t.DayWidth, t.Days)
	row, okY := cell(p.Y, t.SlotHeight, t.Rows)
	day := datemath.AddCalendarDays(datemath.StartOfDay(t.First), col)
	return datemath.AtTimeOfDay(day, t.DayStart+time.Duration(row)*t.Slot), okX && okY
}

// RowOf returns the row showing time of day tod, clamped to the surface.
func (t *Timeline) RowOf(tod time.Duration) int {
	if t.Slot <= 0 {
		return 0
	}
	row := int((tod - t.DayStart) / t.Slot)
	if row < 0 {
		return 0
	}
	if row >= t.Rows {
		return t.Rows - 1
	}
	return row
}

// cell converts a coordinate into a clamped index.
func cell(v, size float64, n int) (int, bool) {
	if size <= 0 || n <= 0 {
		return 0, false
	}
	i := int(math.Floor(v / size))
	ok := v >= 0 && i < n
	if i < 0 {
		i = 0
	}
	if i >= n {
		i = n - 1
	}
	return i, ok
}
