// Package report renders a finished run's estimate trace next to the
// ground truth: PNG plots via gonum/plot and a self-contained HTML
// comparison chart via go-echarts. It consumes only the replay records
// and the estimation history; it knows nothing about how they were
// produced.
package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/pose.report/internal/dynamics"
	"github.com/banshee-data/pose.report/internal/estimator"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	truthColor    = color.RGBA{R: 0, G: 153, B: 51, A: 255}
	estimateColor = color.RGBA{R: 0, G: 170, B: 204, A: 255}
)

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakeOutputDir returns a timestamped artifact directory for a run:
// <baseDir>/<runID>/<timestamp>.
func MakeOutputDir(baseDir, runID string) string {
	return filepath.Join(baseDir, runID, FormatTimestamp(time.Now()))
}

// WritePlots renders the trajectory and per-component comparison plots
// for a run into dir. Files are named after the estimator variant. It
// returns the paths written.
func WritePlots(dir, variant string, v dynamics.Vehicle, recs []estimator.Record, ests []estimator.Estimate) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var written []string

	trajectory := filepath.Join(dir, variant+"_trajectory.png")
	if err := writeTrajectoryPlot(trajectory, variant, v, recs, ests); err != nil {
		return written, err
	}
	written = append(written, trajectory)

	for i, label := range v.StateLabels() {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", variant, label))
		if err := writeComponentPlot(path, variant, label, i, recs, ests); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// writeTrajectoryPlot draws the planar true vs estimated path.
func writeTrajectoryPlot(path, variant string, v dynamics.Vehicle, recs []estimator.Record, ests []estimator.Estimate) error {
	xi, yi := v.PositionIndices()

	p := plot.New()
	p.Title.Text = variant
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	truthPts := make(plotter.XYs, 0, len(recs))
	for _, rec := range recs {
		truthPts = append(truthPts, plotter.XY{X: rec.Truth[xi], Y: rec.Truth[yi]})
	}
	estPts := make(plotter.XYs, 0, len(ests))
	for _, est := range ests {
		estPts = append(estPts, plotter.XY{X: est.X[xi], Y: est.X[yi]})
	}

	if err := addLine(p, "True", truthPts, truthColor); err != nil {
		return err
	}
	if err := addLine(p, "Estimated", estPts, estimateColor); err != nil {
		return err
	}
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save trajectory plot: %w", err)
	}
	return nil
}

// writeComponentPlot draws one state component against time.
func writeComponentPlot(path, variant, label string, idx int, recs []estimator.Record, ests []estimator.Estimate) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %s", variant, label)
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = label

	truthPts := make(plotter.XYs, 0, len(recs))
	for _, rec := range recs {
		truthPts = append(truthPts, plotter.XY{X: rec.T, Y: rec.Truth[idx]})
	}
	estPts := make(plotter.XYs, 0, len(ests))
	for _, est := range ests {
		estPts = append(estPts, plotter.XY{X: est.T, Y: est.X[idx]})
	}

	if err := addLine(p, "True", truthPts, truthColor); err != nil {
		return err
	}
	if err := addLine(p, "Estimated", estPts, estimateColor); err != nil {
		return err
	}
	p.Legend.Top = true

	if err := p.Save(14*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s plot: %w", label, err)
	}
	return nil
}

func addLine(p *plot.Plot, name string, pts plotter.XYs, c color.Color) error {
	if len(pts) == 0 {
		return nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}
