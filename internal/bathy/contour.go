package bathy

import (
	"math"

	"github.com/paulmach/orb"
)

// Geographic limits applied by the validity filter.
const (
	maxAbsLon = 180.0
	maxAbsLat = 90.0
)

// ContourFeature holds every polyline traced at one depth level. For the
// fallback path it holds a single closed ring.
type ContourFeature struct {
	Level    float64             `json:"level"`
	Lines    orb.MultiLineString `json:"lines"`
	Fallback bool                `json:"fallback,omitempty"`
}

// cell edges, counter-clockwise from the bottom
const (
	edgeBottom = iota
	edgeRight
	edgeTop
	edgeLeft
)

// segment joins two crossed grid edges, identified by edge key.
type segment struct{ a, b int }

func (s segment) other(at int) int {
	if s.a == at {
		return s.b
	}
	return s.a
}

// Extract traces isolines for every level and returns one feature per
// level, in level order. Coordinates are mapped back to sample space with
// the grid's bounding box. When geographic is true, polylines with any
// vertex outside |x| <= 180, |y| <= 90 are dropped.
func Extract(g *Grid, levels []float64, geographic bool) []ContourFeature {
	features := make([]ContourFeature, 0, len(levels))
	for _, level := range levels {
		raw := traceLevel(g, level)
		f := ContourFeature{Level: level}
		dropped := 0
		for _, line := range raw {
			world := toWorld(g, line)
			if !validLine(world, geographic) {
				dropped++
				continue
			}
			f.Lines = append(f.Lines, world)
		}
		tracef("level %.2f: traced=%d kept=%d dropped=%d", level, len(raw), len(f.Lines), dropped)
		features = append(features, f)
	}
	return features
}

// traceLevel runs marching squares at one level and returns polylines in
// grid index space (x = column, y = row).
func traceLevel(g *Grid, level float64) []orb.LineString {
	w, h := g.Width, g.Height
	if w < 2 || h < 2 {
		return nil
	}

	hkey := func(i, j int) int { return 2 * (j*w + i) }
	vkey := func(i, j int) int { return 2*(j*w+i) + 1 }

	points := make(map[int]orb.Point)
	var segs []segment

	for j := 0; j < h-1; j++ {
		for i := 0; i < w-1; i++ {
			v0 := g.At(j, i)
			v1 := g.At(j, i+1)
			v2 := g.At(j+1, i+1)
			v3 := g.At(j+1, i)

			c := 0
			if v0 >= level {
				c |= 1
			}
			if v1 >= level {
				c |= 2
			}
			if v2 >= level {
				c |= 4
			}
			if v3 >= level {
				c |= 8
			}
			if c == 0 || c == 15 {
				continue
			}

			var keys [4]int
			keys[edgeBottom] = hkey(i, j)
			keys[edgeRight] = vkey(i+1, j)
			keys[edgeTop] = hkey(i, j+1)
			keys[edgeLeft] = vkey(i, j)

			cross := func(e int) {
				k := keys[e]
				if _, ok := points[k]; ok {
					return
				}
				fi, fj := float64(i), float64(j)
				switch e {
				case edgeBottom:
					points[k] = orb.Point{fi + frac(level, v0, v1), fj}
				case edgeRight:
					points[k] = orb.Point{fi + 1, fj + frac(level, v1, v2)}
				case edgeTop:
					points[k] = orb.Point{fi + frac(level, v3, v2), fj + 1}
				case edgeLeft:
					points[k] = orb.Point{fi, fj + frac(level, v0, v3)}
				}
			}
			add := func(e1, e2 int) {
				cross(e1)
				cross(e2)
				segs = append(segs, segment{keys[e1], keys[e2]})
			}

			switch c {
			case 5, 10:
				// Saddle: the cell-centre mean decides which diagonal
				// corners are connected.
				centreAbove := (v0+v1+v2+v3)/4 >= level
				if (c == 5) == centreAbove {
					add(edgeBottom, edgeRight)
					add(edgeTop, edgeLeft)
				} else {
					add(edgeLeft, edgeBottom)
					add(edgeRight, edgeTop)
				}
			default:
				var crossed []int
				b := [4]bool{c&1 != 0, c&2 != 0, c&4 != 0, c&8 != 0}
				if b[0] != b[1] {
					crossed = append(crossed, edgeBottom)
				}
				if b[1] != b[2] {
					crossed = append(crossed, edgeRight)
				}
				if b[3] != b[2] {
					crossed = append(crossed, edgeTop)
				}
				if b[0] != b[3] {
					crossed = append(crossed, edgeLeft)
				}
				add(crossed[0], crossed[1])
			}
		}
	}

	return joinSegments(segs, points)
}

// frac is the linear position of level between a and b. Callers only ask
// for edges whose endpoints straddle level, so a != b in practice.
func frac(level, a, b float64) float64 {
	if a == b {
		return 0.5
	}
	return (level - a) / (b - a)
}

// joinSegments chains segments that share an edge. Open chains are emitted
// first, walking from a dangling end; what remains are closed loops, whose
// last vertex repeats the first. Each edge key touches at most two
// segments, one per adjacent cell.
func joinSegments(segs []segment, points map[int]orb.Point) []orb.LineString {
	if len(segs) == 0 {
		return nil
	}

	adj := make(map[int][]int, 2*len(segs))
	for idx, s := range segs {
		adj[s.a] = append(adj[s.a], idx)
		adj[s.b] = append(adj[s.b], idx)
	}
	used := make([]bool, len(segs))

	follow := func(start, from int) orb.LineString {
		line := orb.LineString{points[from]}
		cur, at := start, from
		for {
			used[cur] = true
			next := segs[cur].other(at)
			line = append(line, points[next])
			nextSeg := -1
			for _, cand := range adj[next] {
				if !used[cand] {
					nextSeg = cand
					break
				}
			}
			if nextSeg < 0 {
				return line
			}
			cur, at = nextSeg, next
		}
	}

	var lines []orb.LineString
	for idx, s := range segs {
		if used[idx] {
			continue
		}
		switch {
		case len(adj[s.a]) == 1:
			lines = append(lines, follow(idx, s.a))
		case len(adj[s.b]) == 1:
			lines = append(lines, follow(idx, s.b))
		}
	}
	for idx, s := range segs {
		if !used[idx] {
			lines = append(lines, follow(idx, s.a))
		}
	}
	return lines
}

func toWorld(g *Grid, line orb.LineString) orb.LineString {
	out := make(orb.LineString, len(line))
	for k, p := range line {
		out[k] = orb.Point{
			g.BBox.WorldX(p[0], g.Width),
			g.BBox.WorldY(p[1], g.Height),
		}
	}
	return out
}

// validLine applies the all-or-nothing vertex policy: one bad vertex drops
// the whole polyline. Lines with fewer than two points, or whose vertices
// all coincide, are dropped as well.
func validLine(line orb.LineString, geographic bool) bool {
	if len(line) < 2 {
		return false
	}
	distinct := false
	for _, p := range line {
		if !isFinite(p[0]) || !isFinite(p[1]) {
			return false
		}
		if geographic && (math.Abs(p[0]) > maxAbsLon || math.Abs(p[1]) > maxAbsLat) {
			return false
		}
		if p != line[0] {
			distinct = true
		}
	}
	return distinct
}

// CountLines returns the number of polylines across all features.
func CountLines(features []ContourFeature) int {
	n := 0
	for _, f := range features {
		n += len(f.Lines)
	}
	return n
}
