package render

import (
	"fmt"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"pointerheat/internal/service"
	"pointerheat/internal/store"
)

// minBuckets keeps the x range of a timeline non-degenerate
const minBuckets = 2

// Activity bins sample timestamps into n equal buckets between the first
// and last sample. It returns the bucket start times and sample counts.
func Activity(samples []store.Sample, n int) ([]time.Time, []float64) {
	if len(samples) == 0 {
		return nil, nil
	}
	if n < minBuckets {
		n = minBuckets
	}

	lo, hi := samples[0].Timestamp, samples[0].Timestamp
	for _, s := range samples {
		lo = math.Min(lo, s.Timestamp)
		hi = math.Max(hi, s.Timestamp)
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}
	step := span / float64(n)

	counts := make([]float64, n)
	for _, s := range samples {
		k := int((s.Timestamp - lo) / step)
		if k >= n {
			k = n - 1
		}
		counts[k]++
	}

	times := make([]time.Time, n)
	for k := range times {
		times[k] = unixFloat(lo + float64(k)*step)
	}
	return times, counts
}

func unixFloat(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// Timeline renders samples per time bucket as a PNG chart
func Timeline(w io.Writer, samples []store.Sample, buckets, width, height int) error {
	if len(samples) == 0 {
		return service.ErrNoData
	}
	times, counts := Activity(samples, buckets)

	peak := 0.0
	for _, c := range counts {
		peak = math.Max(peak, c)
	}

	ch := chart.Chart{
		Title:      fmt.Sprintf("Pointer activity (%d samples)", len(samples)),
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           "Time",
			ValueFormatter: chart.TimeMinuteValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:  "Samples",
			Range: &chart.ContinuousRange{Min: 0, Max: math.Max(1, peak*1.1)},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Samples",
				XValues: times,
				YValues: counts,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("e16462"),
					StrokeWidth: 2,
					FillColor:   drawing.ColorFromHex("e16462").WithAlpha(64),
				},
			},
		},
	}
	return ch.Render(chart.PNG, w)
}
