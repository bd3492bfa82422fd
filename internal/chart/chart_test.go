package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/hand_rehab/internal/forecast"
	"github.com/relabs-tech/hand_rehab/internal/samplelog"
)

func sampleForecast(t *testing.T) *forecast.Result {
	t.Helper()
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.Local)
	var rows []samplelog.Sample
	for id := 1; id <= 3; id++ {
		half := 10 * float64(id)
		rows = append(rows,
			samplelog.Sample{SessionID: id, Mode: 1, RepNumber: 1, AngleValue: half, Timestamp: base.AddDate(0, 0, id)},
			samplelog.Sample{SessionID: id, Mode: 1, RepNumber: 2, AngleValue: -half, Timestamp: base.AddDate(0, 0, id)},
		)
	}
	opts := forecast.DefaultOptions()
	opts.MinSessions = 3
	res, err := forecast.Run(rows, opts)
	require.NoError(t, err)
	return res
}

func TestRender_PNG(t *testing.T) {
	res := sampleForecast(t)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, res))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, Width, img.Bounds().Dx())
	assert.Equal(t, Height, img.Bounds().Dy())
}

// countNear counts pixels within tol of c on every channel.
func countNear(img *image.RGBA, c color.RGBA, tol int) int {
	near := func(a, b uint8) bool { return abs(int(a)-int(b)) <= tol }
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := img.RGBAAt(x, y)
			if near(px.R, c.R) && near(px.G, c.G) && near(px.B, c.B) {
				n++
			}
		}
	}
	return n
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestDraw_Marks(t *testing.T) {
	res := sampleForecast(t)
	img, err := Draw(res)
	require.NoError(t, err)

	assert.Positive(t, countNear(img, colorROM, 30), "observed ROM markers")
	assert.Positive(t, countNear(img, colorTrend, 30), "trend curve")
	assert.Positive(t, countNear(img, colorPredicted, 30), "predicted session line")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(Width-2, 2))
}

func TestNewPlot_Ranges(t *testing.T) {
	res := sampleForecast(t)
	p, err := newPlot(res)
	require.NoError(t, err)

	assert.Equal(t, 1.0, p.X.Min)
	assert.Equal(t, float64(res.PredictedSession), p.X.Max)
	assert.Equal(t, 0.0, p.Y.Min)
	assert.Equal(t, res.MaxROM+yHeadroom, p.Y.Max)
	assert.Contains(t, p.Title.Text, fmt.Sprintf("session %d", res.PredictedSession))
}

func TestNewPlot_SingleSession(t *testing.T) {
	p, err := newPlot(&forecast.Result{
		ROM:              []forecast.ROMPoint{{SessionID: 10, ROM: 50}},
		CurrentSession:   10,
		PredictedSession: 10,
		MaxROM:           170,
	})
	require.NoError(t, err)
	// a single session still spans the plot
	assert.Equal(t, 10.0, p.X.Min)
	assert.Equal(t, 11.0, p.X.Max)
	assert.Contains(t, p.Title.Text, "not reached")
}

func TestSessionTicks(t *testing.T) {
	ticks := sessionTicks(0.5, 4.2)
	require.Len(t, ticks, 4)
	assert.Equal(t, 1.0, ticks[0].Value)
	assert.Equal(t, "4", ticks[3].Label)

	ticks = sessionTicks(1, 40)
	assert.Equal(t, "1", ticks[0].Label)
	assert.Equal(t, "6", ticks[1].Label)
}

func TestTickStep(t *testing.T) {
	assert.Equal(t, 1, tickStep(8))
	assert.Equal(t, 2, tickStep(15))
	assert.Equal(t, 100, tickStep(1000))
	assert.Equal(t, 1000, tickStep(20000))
}

func TestDraw_NilResult(t *testing.T) {
	_, err := Draw(nil)
	assert.Error(t, err)
}
