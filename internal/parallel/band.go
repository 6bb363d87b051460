package parallel

// Band is a half-open range of rows [Y0, Y1).
type Band struct {
	Y0, Y1 int
}

// Height returns the number of rows in the band.
func (b Band) Height() int { return b.Y1 - b.Y0 }

// minBandRows keeps bands from shrinking to a few rows, where scheduling
// costs more than the work.
const minBandRows = 8

// SplitRows cuts height rows into contiguous bands, about four per worker
// so stealing can even out slow bands.
func SplitRows(height, workers int) []Band {
	if height <= 0 {
		return nil
	}
	workers = max(workers, 1)
	rows := max(minBandRows, (height+workers*4-1)/(workers*4))
	bands := make([]Band, 0, (height+rows-1)/rows)
	for y := 0; y < height; y += rows {
		bands = append(bands, Band{Y0: y, Y1: min(y+rows, height)})
	}
	return bands
}

// ForEachBand splits height rows into bands and calls fn for each band on
// the pool, returning when all bands are done. Bands never overlap, so fn
// may write its rows without locking.
func (p *WorkerPool) ForEachBand(height int, fn func(Band)) {
	bands := SplitRows(height, p.workers)
	work := make([]func(), len(bands))
	for i, b := range bands {
		work[i] = func() { fn(b) }
	}
	p.ExecuteAll(work)
}
