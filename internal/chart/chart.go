// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package chart renders a recovery forecast as a PNG: observed ROM per
// session, the capped trend curve and the predicted completion session.
package chart

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/relabs-tech/hand_rehab/internal/forecast"
)

const (
	Width  = 800
	Height = 480

	// headroom above MaxROM on the y axis
	yHeadroom = 10
)

var (
	colorText      = color.RGBA{0, 0, 0, 255}
	colorROM       = color.RGBA{31, 119, 180, 255}
	colorTrend     = color.RGBA{255, 127, 14, 255}
	colorPredicted = color.RGBA{214, 39, 40, 255}
	colorTarget    = color.RGBA{120, 120, 120, 255}

	dashes = []vg.Length{vg.Points(6), vg.Points(4)}
)

// newPlot lays out res on session and degree axes.
func newPlot(res *forecast.Result) (*plot.Plot, error) {
	xMin := res.CurrentSession
	if len(res.ROM) > 0 {
		xMin = res.ROM[0].SessionID
	}
	xMax := max(res.PredictedSession, res.CurrentSession)
	if xMax <= xMin {
		xMax = xMin + 1
	}
	yMax := res.MaxROM + yHeadroom

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Recovery forecast: session %d reaches %.0f deg", res.PredictedSession, res.TargetROM)
	if !res.TargetReached {
		p.Title.Text = fmt.Sprintf("Recovery forecast: target %.0f deg not reached by session %d", res.TargetROM, res.PredictedSession)
	}
	p.X.Label.Text = "session"
	p.Y.Label.Text = "ROM (deg)"
	p.X.Tick.Marker = plot.TickerFunc(sessionTicks)
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	observed := make(plotter.XYs, len(res.ROM))
	for i, pt := range res.ROM {
		observed[i] = plotter.XY{X: float64(pt.SessionID), Y: pt.ROM}
	}
	scatter, err := plotter.NewScatter(observed)
	if err != nil {
		return nil, fmt.Errorf("chart: observed ROM: %w", err)
	}
	scatter.GlyphStyle.Color = colorROM
	scatter.GlyphStyle.Shape = draw.BoxGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(3)

	lines := []struct {
		label string
		xys   plotter.XYs
		color color.Color
		width vg.Length
		dash  bool
	}{
		{"capped trend", trendXYs(res.Trend), colorTrend, vg.Points(2), false},
		{"predicted session", plotter.XYs{
			{X: float64(res.PredictedSession), Y: 0},
			{X: float64(res.PredictedSession), Y: yMax},
		}, colorPredicted, vg.Points(3), true},
		{"target", plotter.XYs{
			{X: float64(xMin), Y: res.TargetROM},
			{X: float64(xMax), Y: res.TargetROM},
		}, colorTarget, vg.Points(1), true},
	}
	for _, l := range lines {
		if len(l.xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(l.xys)
		if err != nil {
			return nil, fmt.Errorf("chart: %s: %w", l.label, err)
		}
		line.LineStyle.Color = l.color
		line.LineStyle.Width = l.width
		if l.dash {
			line.LineStyle.Dashes = dashes
		}
		p.Add(line)
		p.Legend.Add(l.label, line)
	}
	// drawn last so the markers sit on top of the lines
	p.Add(scatter)
	p.Legend.Add("observed ROM", scatter)

	// Add widens the ranges to the data; pin them afterwards.
	p.X.Min, p.X.Max = float64(xMin), float64(xMax)
	p.Y.Min, p.Y.Max = 0, yMax
	return p, nil
}

func trendXYs(trend []forecast.TrendPoint) plotter.XYs {
	xys := make(plotter.XYs, len(trend))
	for i, pt := range trend {
		xys[i] = plotter.XY{X: float64(pt.SessionID), Y: pt.ROM}
	}
	return xys
}

// Draw renders res into a new image.
func Draw(res *forecast.Result) (*image.RGBA, error) {
	if res == nil {
		return nil, errors.New("chart: no forecast to draw")
	}
	p, err := newPlot(res)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	c := vgimg.NewWith(vgimg.UseImage(img))
	p.Draw(draw.New(c))
	annotate(img, res)
	return img, nil
}

// Render writes res as a PNG.
func Render(w io.Writer, res *forecast.Result) error {
	img, err := Draw(res)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("chart: encode png: %w", err)
	}
	return nil
}

// annotate writes the forecast figures in the bottom left corner.
func annotate(img *image.RGBA, res *forecast.Result) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(colorText),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, Height-4),
	}
	drawer.DrawString(fmt.Sprintf("n=%d  current %.1f deg  remaining %d",
		res.SessionsAnalyzed, res.CurrentROM, res.RemainingSessions))
}

// sessionTicks labels whole sessions only.
func sessionTicks(lo, hi float64) []plot.Tick {
	first, last := int(math.Ceil(lo)), int(math.Floor(hi))
	step := tickStep(last - first)
	var ticks []plot.Tick
	for id := first; id <= last; id += step {
		ticks = append(ticks, plot.Tick{Value: float64(id), Label: fmt.Sprint(id)})
	}
	return ticks
}

// tickStep picks a round session step giving at most about ten labels.
func tickStep(span int) int {
	for _, s := range []int{1, 2, 5, 10, 20, 50, 100, 200, 500} {
		if span/s <= 10 {
			return s
		}
	}
	return 1000
}
