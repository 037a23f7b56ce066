package report

import (
	"bytes"
	"image/color"

	"github.com/cyclopcam/gatecount/pkg/gate"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var directionColors = []color.RGBA{
	{0, 170, 0, 255},   // Incoming
	{230, 140, 0, 255}, // Outgoing
}

// CountsChartPNG renders incoming and outgoing counts per category as a grouped bar chart
func CountsChartPNG(title string, counts gate.Counts) ([]byte, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Vehicles"

	barWidth := vg.Points(20)
	for i, dir := range gate.Directions {
		values := plotter.Values{}
		for _, cat := range gate.Categories {
			values = append(values, float64(counts.Get(dir, cat)))
		}
		bars, err := plotter.NewBarChart(values, barWidth)
		if err != nil {
			return nil, err
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = directionColors[i%len(directionColors)]
		bars.Offset = barWidth * vg.Length(2*i-1) / 2
		p.Add(bars)
		p.Legend.Add(dir.String(), bars)
	}
	names := []string{}
	for _, cat := range gate.Categories {
		names = append(names, cat.String())
	}
	p.NominalX(names...)
	p.Legend.Top = true
	p.Y.Min = 0
	// An empty session would otherwise have a zero height axis
	p.Y.Max = max(p.Y.Max, 1)

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	buf := bytes.Buffer{}
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
