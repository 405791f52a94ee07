package segmentation

import "math"

// otsuLevel returns the level t that maximises between-class variance when pixels at or
// below t form one class. hist must be non-empty; an empty histogram yields the midpoint.
func otsuLevel(hist []float64) int {
	var total, sum float64
	for i, n := range hist {
		total += n
		sum += float64(i) * n
	}
	if total == 0 {
		return len(hist) / 2
	}

	best, bestVar := 0, -1.0
	var w0, sum0 float64
	for t, n := range hist[:len(hist)-1] {
		w0 += n
		sum0 += float64(t) * n
		w1 := total - w0
		if w0 == 0 || w1 == 0 {
			continue
		}
		m0, m1 := sum0/w0, (sum-sum0)/w1
		v := w0 * w1 * (m0 - m1) * (m0 - m1)
		if v > bestVar {
			best, bestVar = t, v
		}
	}
	return best
}

// otsu2DLevels searches the pixel/neighbourhood histogram for the pair (s, t) whose
// lower-left quadrant best separates from the rest, using the trace of the between-class
// scatter matrix. Prefix sums keep the search quadratic in the bin count.
func otsu2DLevels(hist [][]float64) (int, int) {
	bins := len(hist)
	// p, mi, mj are inclusive prefix sums of weight and of the i and j moments.
	p := newGrid(bins)
	mi := newGrid(bins)
	mj := newGrid(bins)

	var total float64
	for i := 0; i < bins; i++ {
		for j := 0; j < bins; j++ {
			total += hist[i][j]
		}
	}
	if total == 0 {
		return bins / 2, bins / 2
	}

	for i := 0; i < bins; i++ {
		for j := 0; j < bins; j++ {
			w := hist[i][j] / total
			p[i+1][j+1] = w + p[i][j+1] + p[i+1][j] - p[i][j]
			mi[i+1][j+1] = float64(i)*w + mi[i][j+1] + mi[i+1][j] - mi[i][j]
			mj[i+1][j+1] = float64(j)*w + mj[i][j+1] + mj[i+1][j] - mj[i][j]
		}
	}

	muI, muJ := mi[bins][bins], mj[bins][bins]
	bestS, bestT, bestTrace := bins/2, bins/2, -1.0
	for s := 0; s < bins-1; s++ {
		for t := 0; t < bins-1; t++ {
			w0 := p[s+1][t+1]
			if w0 <= 1e-12 || w0 >= 1-1e-12 {
				continue
			}
			di := muI*w0 - mi[s+1][t+1]
			dj := muJ*w0 - mj[s+1][t+1]
			trace := (di*di + dj*dj) / (w0 * (1 - w0))
			if trace > bestTrace {
				bestS, bestT, bestTrace = s, t, trace
			}
		}
	}
	return bestS, bestT
}

func newGrid(bins int) [][]float64 {
	g := make([][]float64, bins+1)
	for i := range g {
		g[i] = make([]float64, bins+1)
	}
	return g
}

// classMeans returns the mean grey level of the region pixels at or below level and of
// those above it. An empty class reports the level itself.
func classMeans(hist []float64, level int) (float64, float64) {
	var w0, s0, w1, s1 float64
	for v, n := range hist {
		if v <= level {
			w0 += n
			s0 += float64(v) * n
		} else {
			w1 += n
			s1 += float64(v) * n
		}
	}
	m0, m1 := float64(level), float64(level)
	if w0 > 0 {
		m0 = s0 / w0
	}
	if w1 > 0 {
		m1 = s1 / w1
	}
	return m0, m1
}

func binOf(v byte, bins int) int {
	return int(math.Min(float64(v)*float64(bins)/256, float64(bins-1)))
}
