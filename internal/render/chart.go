package render

import (
	"strings"

	"github.com/guptarohit/asciigraph"
)

// Chart is a drawn P&L line chart. A disposed chart renders nothing.
type Chart struct {
	series   Series
	host     *ChartHost
	disposed bool
}

// Render draws the chart within width x height cells.
func (c *Chart) Render(width, height int) string {
	if c == nil || c.disposed {
		return ""
	}
	values := c.series.Values
	if len(values) == 0 {
		return NoChartText
	}
	// asciigraph 需要至少两个点
	if len(values) == 1 {
		values = []float64{values[0], values[0]}
	}
	if width < 10 {
		width = 10
	}
	if height < 3 {
		height = 3
	}

	graph := asciigraph.Plot(values,
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Precision(2),
		asciigraph.Caption("Cumulative P&L (USDT)"),
	)

	first, last := c.series.Labels[0], c.series.Labels[len(c.series.Labels)-1]
	if first == "" && last == "" {
		return graph
	}
	axis := first
	if last != first {
		gap := width - len(first) - len(last)
		if gap < 1 {
			gap = 1
		}
		axis = first + strings.Repeat(" ", gap) + last
	}
	return graph + "\n" + axis
}

// Dispose releases the chart. It is safe to call more than once.
func (c *Chart) Dispose() {
	if c == nil || c.disposed {
		return
	}
	c.disposed = true
	if c.host != nil {
		c.host.live--
	}
}

// ChartHost owns at most one live chart at a time.
type ChartHost struct {
	current *Chart
	live    int
}

// Replace disposes the current chart and builds a new one from series.
func (h *ChartHost) Replace(series Series) *Chart {
	h.current.Dispose()
	c := &Chart{
		series: Series{
			Labels: append([]string(nil), series.Labels...),
			Values: append([]float64(nil), series.Values...),
		},
		host: h,
	}
	// Labels 与 Values 长度保持一致
	for len(c.series.Labels) < len(c.series.Values) {
		c.series.Labels = append(c.series.Labels, "")
	}
	h.current = c
	h.live++
	return c
}

// Current returns the live chart, or nil.
func (h *ChartHost) Current() *Chart {
	return h.current
}

// Live is the number of charts that have not been disposed (0 or 1).
func (h *ChartHost) Live() int {
	return h.live
}

// Dispose releases the current chart.
func (h *ChartHost) Dispose() {
	h.current.Dispose()
	h.current = nil
}
