package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/jaspreeeet/kaku/internal/httputil"
)

// activityChart renders recent daily stats as an HTML chart: step bars
// with the health score overlaid as a line.
func (s *Server) activityChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	days, err := parseDays(r, 14)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	stats, err := s.db.ListDailyStats(r.Context(), days)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to retrieve daily stats: %v", err))
		return
	}

	// ListDailyStats returns newest first; the chart reads left to right.
	var (
		labels []string
		steps  []opts.BarData
		health []opts.LineData
	)
	for i := len(stats) - 1; i >= 0; i-- {
		rec := stats[i]
		labels = append(labels, rec.Day)
		steps = append(steps, opts.BarData{Value: rec.Steps})
		health = append(health, opts.LineData{Value: rec.HealthScore})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Daily activity",
			Subtitle: fmt.Sprintf("steps and health over the last %d days", days),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).AddSeries("steps", steps)

	line := charts.NewLine()
	line.SetXAxis(labels).AddSeries("health", health)
	bar.Overlap(line)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
