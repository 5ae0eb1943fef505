package detection

import (
	"image"
	"slices"
)

// Box is an axis-aligned bounding box in the coordinate space of the edge map
// it was found in.
//
// Width and Height count pixels, so a single isolated edge pixel yields a
// 1x1 box.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Translate returns the box shifted by (dx, dy).
func (b Box) Translate(dx, dy int) Box {
	return Box{X: b.X + dx, Y: b.Y + dy, Width: b.Width, Height: b.Height}
}

// Corners returns the rectangle from (X, Y) to (X+Width, Y+Height), the two
// corner points an annotator outlines.
func (b Box) Corners() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Contour is a closed boundary stored as its chain vertices.
type Contour []image.Point

// BoundingBox returns the smallest box enclosing every vertex of c.
func (c Contour) BoundingBox() Box {
	if len(c) == 0 {
		return Box{}
	}
	minX, minY := c[0].X, c[0].Y
	maxX, maxY := minX, minY
	for _, p := range c[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Box{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
}

// neighbors lists the 8-neighborhood starting east and turning clockwise on
// screen (Y grows downward).
var neighbors = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

func direction(from, to image.Point) int {
	d := to.Sub(from)
	for i, n := range neighbors {
		if n == d {
			return i
		}
	}
	return -1
}

type border struct {
	hole   bool
	parent int
}

// FindExternalContours traces the outermost borders of the foreground
// (non-zero) pixels of edges.
//
// Borders nested inside a hole of another component are ignored, as are all
// hole borders. Each contour keeps only the vertices where the chain changes
// direction. Contours are returned last-found first: the reverse of the
// raster order of their first pixels, which is the order OpenCV's external
// retrieval lists them in.
//
// # Algorithm
//
// Topological border following (Suzuki & Abe, 1985): the image is scanned row
// by row; every 0→1 transition starts an outer border and every 1→0
// transition on an unlabelled border starts a hole border. Each border is
// followed with 8-connectivity and labelled so it is not traced twice, and
// its parent is derived from the last border crossed on the current row. A
// border whose parent is the image frame is external.
func FindExternalContours(edges *image.Gray) []Contour {
	bounds := edges.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	// Pad with a one-pixel frame of background so the tracer never leaves the grid.
	pw := width + 2
	ph := height + 2
	f := make([]int32, pw*ph)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y != 0 {
				f[(y+1)*pw+x+1] = 1
			}
		}
	}
	at := func(p image.Point) int32 { return f[p.Y*pw+p.X] }
	set := func(p image.Point, v int32) { f[p.Y*pw+p.X] = v }

	// Border 1 is the frame, which counts as a hole.
	borders := []border{{}, {hole: true}}
	contours := make([]Contour, 0)

	for y := 1; y < ph-1; y++ {
		lnbd := 1
		for x := 1; x < pw-1; x++ {
			cur := image.Pt(x, y)
			v := at(cur)

			var from image.Point
			hole := false
			switch {
			case v == 1 && at(image.Pt(x-1, y)) == 0:
				from = image.Pt(x-1, y)
			case v >= 1 && at(image.Pt(x+1, y)) == 0:
				from = image.Pt(x+1, y)
				hole = true
				if v > 1 {
					lnbd = int(v)
				}
			default:
				if v != 0 && v != 1 {
					lnbd = int(abs32(v))
				}
				continue
			}

			nbd := len(borders)
			prev := borders[lnbd]
			parent := lnbd
			if hole == prev.hole {
				parent = prev.parent
			}
			borders = append(borders, border{hole: hole, parent: parent})

			pts := traceBorder(at, set, cur, from, int32(nbd))
			if !hole && parent == 1 {
				contours = append(contours, simplifyChain(pts, image.Pt(-1, -1)))
			}

			if v := at(cur); v != 1 {
				lnbd = int(abs32(v))
			}
		}
	}

	slices.Reverse(contours)
	return contours
}

// traceBorder follows the border that starts at start, entering from the
// background pixel from, labels it with nbd and returns its pixels in
// padded coordinates.
func traceBorder(at func(image.Point) int32, set func(image.Point, int32), start, from image.Point, nbd int32) []image.Point {
	// Look clockwise around start for the first foreground neighbor.
	d0 := direction(start, from)
	first := image.Point{X: -1}
	for k := 0; k < 8; k++ {
		p := start.Add(neighbors[(d0+k)%8])
		if at(p) != 0 {
			first = p
			break
		}
	}
	if first.X == -1 {
		set(start, -nbd)
		return []image.Point{start}
	}

	pts := make([]image.Point, 0, 16)
	prev, cur := first, start
	for {
		pts = append(pts, cur)

		// Counterclockwise from the element after prev.
		dp := direction(cur, prev)
		var next image.Point
		eastIsBackground := false
		for k := 1; k <= 8; k++ {
			d := (dp - k + 8) % 8
			p := cur.Add(neighbors[d])
			if at(p) != 0 {
				next = p
				break
			}
			if d == 0 {
				eastIsBackground = true
			}
		}

		if eastIsBackground {
			set(cur, -nbd)
		} else if at(cur) == 1 {
			set(cur, nbd)
		}

		if next == start && cur == first {
			break
		}
		prev, cur = cur, next
	}
	return pts
}

// simplifyChain drops the pixels that continue a straight horizontal,
// vertical or diagonal run, keeping only the run endpoints, and shifts the
// result by offset.
func simplifyChain(pts []image.Point, offset image.Point) Contour {
	n := len(pts)
	if n <= 2 {
		out := make(Contour, n)
		for i, p := range pts {
			out[i] = p.Add(offset)
		}
		return out
	}

	out := make(Contour, 0, 8)
	out = append(out, pts[0].Add(offset))
	for i := 1; i < n; i++ {
		in := pts[i].Sub(pts[i-1])
		outDir := pts[(i+1)%n].Sub(pts[i])
		if in != outDir {
			out = append(out, pts[i].Add(offset))
		}
	}
	return out
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
