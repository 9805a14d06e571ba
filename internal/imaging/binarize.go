package imaging

// Histogram counts pixel values across the whole buffer.
func (g *Gray) Histogram() [256]int {
	var hist [256]int
	for _, v := range g.pix {
		hist[v]++
	}
	return hist
}

// OtsuThreshold computes the global threshold separating dark ink
// from paper by maximizing between-class variance over the histogram.
// Pixels strictly below the returned value are ink.
func OtsuThreshold(hist [256]int) uint8 {
	var total int
	var sum float64
	for v, n := range hist {
		total += n
		sum += float64(v) * float64(n)
	}
	if total == 0 {
		return 128
	}

	var (
		sumBack    float64
		weightBack int
		maxVar     float64
		best       = 128
	)
	for t := 0; t < 256; t++ {
		weightBack += hist[t]
		if weightBack == 0 {
			continue
		}
		weightFore := total - weightBack
		if weightFore == 0 {
			break
		}
		sumBack += float64(t) * float64(hist[t])
		meanBack := sumBack / float64(weightBack)
		meanFore := (sum - sumBack) / float64(weightFore)
		diff := meanBack - meanFore
		between := float64(weightBack) * float64(weightFore) * diff * diff
		if between > maxVar {
			maxVar = between
			best = t + 1
		}
	}
	// 255 would classify the entire page as ink.
	if best > 255 {
		best = 255
	}
	return uint8(best)
}

// InkThreshold is OtsuThreshold over the buffer's own histogram.
func (g *Gray) InkThreshold() uint8 {
	return OtsuThreshold(g.Histogram())
}
