package stats

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/kpauljoseph/deckdrill/internal/api"
)

const (
	ChartWidth  = 640
	ChartHeight = 360

	marginLeft   = 48.0
	marginRight  = 16.0
	marginTop    = 40.0
	marginBottom = 36.0
)

var (
	colorNew       = color.RGBA{0x4e, 0x79, 0xa7, 0xff}
	colorLearning  = color.RGBA{0xf2, 0x8e, 0x2b, 0xff}
	colorMastered  = color.RGBA{0x59, 0xa1, 0x4f, 0xff}
	colorForgotten = color.RGBA{0xe1, 0x57, 0x59, 0xff}
	colorAccuracy  = color.RGBA{0x76, 0xb7, 0xb2, 0xff}
	colorAxis      = color.RGBA{0x44, 0x44, 0x44, 0xff}
)

type bar struct {
	label string
	value float64
	text  string
	color color.Color
}

// RenderStateChart draws how many cards sit in each learning state.
func RenderStateChart(w io.Writer, counts api.StateCounts) error {
	bars := []bar{
		{label: "new", value: float64(counts.New), color: colorNew},
		{label: "learning", value: float64(counts.Learning), color: colorLearning},
		{label: "mastered", value: float64(counts.Mastered), color: colorMastered},
		{label: "forgotten", value: float64(counts.Forgotten), color: colorForgotten},
	}
	maxValue := 0.0
	for i := range bars {
		bars[i].text = fmt.Sprintf("%d", int(bars[i].value))
		if bars[i].value > maxValue {
			maxValue = bars[i].value
		}
	}
	title := fmt.Sprintf("Cards by state (%d total)", counts.Total())
	return drawBars(title, bars, maxValue).EncodePNG(w)
}

// RenderReviewChart draws daily answer accuracy. Days without reviews show an
// empty bar.
func RenderReviewChart(w io.Writer, reviews []api.DailyReviews) error {
	bars := make([]bar, 0, len(reviews))
	for _, day := range reviews {
		label := day.Date
		if len(label) == len("2006-01-02") {
			label = label[5:]
		}
		acc := day.Accuracy()
		bars = append(bars, bar{
			label: label,
			value: acc,
			text:  fmt.Sprintf("%.0f%%", acc*100),
			color: colorAccuracy,
		})
	}
	return drawBars("Daily accuracy", bars, 1).EncodePNG(w)
}

// SaveChart renders into path, creating its directory.
func SaveChart(path string, render func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart: %w", err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return f.Close()
}

func drawBars(title string, bars []bar, maxValue float64) *gg.Context {
	dc := gg.NewContext(ChartWidth, ChartHeight)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorAxis)
	dc.DrawStringAnchored(title, ChartWidth/2, marginTop/2, 0.5, 0.5)

	plotW := ChartWidth - marginLeft - marginRight
	plotH := ChartHeight - marginTop - marginBottom
	baseY := marginTop + plotH

	dc.SetLineWidth(1)
	dc.DrawLine(marginLeft, baseY, marginLeft+plotW, baseY)
	dc.DrawLine(marginLeft, marginTop, marginLeft, baseY)
	dc.Stroke()

	if len(bars) == 0 {
		dc.DrawStringAnchored("no data", ChartWidth/2, marginTop+plotH/2, 0.5, 0.5)
		return dc
	}

	slot := plotW / float64(len(bars))
	barW := slot * 0.6
	for i, b := range bars {
		x := marginLeft + slot*float64(i) + (slot-barW)/2
		h := 0.0
		if maxValue > 0 {
			h = plotH * b.value / maxValue
		}

		dc.SetColor(b.color)
		dc.DrawRectangle(x, baseY-h, barW, h)
		dc.Fill()

		dc.SetColor(colorAxis)
		dc.DrawStringAnchored(b.label, x+barW/2, baseY+marginBottom/2, 0.5, 0.5)
		if b.text != "" {
			dc.DrawStringAnchored(b.text, x+barW/2, baseY-h-8, 0.5, 0.5)
		}
	}
	return dc
}
