package util

import (
	gometrics "github.com/rcrowley/go-metrics"
)

// entryOverhead is the estimated bookkeeping cost per entry in bytes (key and value headers)
const entryOverhead = 16

// defaultReservoir is the number of samples kept by a SizeSampler
const defaultReservoir = 1028

// SizeStats is a summary of the sampled entry sizes, suitable for DatabaseInfo metadata
type SizeStats struct {
	Samples int64   `json:"samples"`
	Mean    float64 `json:"mean"`
	P50     float64 `json:"p50"`
	P99     float64 `json:"p99"`
	Max     int64   `json:"max"`
}

// SizeSampler estimates the size of a database from a sample of its entries.
// It keeps a uniform reservoir of entry sizes, so memory usage is bounded no matter how
// many entries are added.
//
// Thread-safe: the underlying histogram is safe for concurrent use
type SizeSampler struct {
	hist gometrics.Histogram
}

// NewSizeSampler creates a sampler with the default reservoir size
func NewSizeSampler() *SizeSampler {
	return &SizeSampler{
		hist: gometrics.NewHistogram(gometrics.NewUniformSample(defaultReservoir)),
	}
}

// Add records the size of one entry
func (s *SizeSampler) Add(keyLen, valueLen int) {
	s.hist.Update(int64(keyLen + valueLen))
}

// EstimateBytes extrapolates the sampled sizes to totalEntries entries.
// The per-entry size is weighted 60% median and 40% mean, the median is more robust to
// a few very large values while the mean still accounts for them.
func (s *SizeSampler) EstimateBytes(totalEntries int) int {
	if s.hist.Count() == 0 || totalEntries == 0 {
		return 0
	}
	perEntry := (s.hist.Percentile(0.5)*60+s.hist.Mean()*40)/100 + entryOverhead
	return int(perEntry * float64(totalEntries))
}

// Stats returns a summary of the recorded samples
func (s *SizeSampler) Stats() SizeStats {
	snap := s.hist.Snapshot()
	return SizeStats{
		Samples: snap.Count(),
		Mean:    snap.Mean(),
		P50:     snap.Percentile(0.5),
		P99:     snap.Percentile(0.99),
		Max:     snap.Max(),
	}
}
