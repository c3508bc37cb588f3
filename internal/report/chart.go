package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/banshee-data/pose.report/internal/dynamics"
	"github.com/banshee-data/pose.report/internal/estimator"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteChartFile renders the interactive HTML comparison chart for a run
// into dir and returns the path written.
func WriteChartFile(dir, variant string, v dynamics.Vehicle, recs []estimator.Record, ests []estimator.Estimate) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(dir, variant+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()

	if err := RenderChart(f, variant, v, recs, ests); err != nil {
		return "", err
	}
	return path, nil
}

// RenderChart writes an HTML page with one line chart per state component
// plus the planar trajectory, true vs estimated.
func RenderChart(w io.Writer, variant string, v dynamics.Vehicle, recs []estimator.Record, ests []estimator.Estimate) error {
	page := components.NewPage()
	page.PageTitle = variant

	page.AddCharts(trajectoryScatter(variant, v, recs, ests))
	for i, label := range v.StateLabels() {
		page.AddCharts(componentLine(label, i, recs, ests))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func trajectoryScatter(variant string, v dynamics.Vehicle, recs []estimator.Record, ests []estimator.Estimate) *charts.Scatter {
	xi, yi := v.PositionIndices()

	truthData := make([]opts.ScatterData, 0, len(recs))
	for _, rec := range recs {
		truthData = append(truthData, opts.ScatterData{Value: []interface{}{rec.Truth[xi], rec.Truth[yi]}})
	}
	estData := make([]opts.ScatterData, 0, len(ests))
	for _, est := range ests {
		estData = append(estData, opts.ScatterData{Value: []interface{}{est.X[xi], est.X[yi]}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: variant, Subtitle: fmt.Sprintf("vehicle=%s samples=%d", v.Name(), len(recs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x (m)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y (m)"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	scatter.AddSeries("True", truthData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	scatter.AddSeries("Estimated", estData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	return scatter
}

func componentLine(label string, idx int, recs []estimator.Record, ests []estimator.Estimate) *charts.Line {
	times := make([]string, 0, len(recs))
	truthData := make([]opts.LineData, 0, len(recs))
	for _, rec := range recs {
		times = append(times, fmt.Sprintf("%.2f", rec.T))
		truthData = append(truthData, opts.LineData{Value: rec.Truth[idx]})
	}
	estData := make([]opts.LineData, 0, len(ests))
	for _, est := range ests {
		estData = append(estData, opts.LineData{Value: est.X[idx]})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: label}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(times).
		AddSeries("True", truthData).
		AddSeries("Estimated", estData)
	return line
}
