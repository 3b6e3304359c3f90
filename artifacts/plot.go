package artifacts

import (
	"image/color"
	"io"

	"github.com/golang/geo/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

type trackPoint struct {
	index    int
	position r3.Vector
}

// writeTrajectoryPlot draws the object translation per frame as a png.
func writeTrajectoryPlot(out io.Writer, track []trackPoint) error {
	p := plot.New()
	p.Title.Text = "object position"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "meters"

	series := []struct {
		name  string
		c     color.Color
		value func(r3.Vector) float64
	}{
		{"x", color.NRGBA{R: 220, A: 255}, func(v r3.Vector) float64 { return v.X }},
		{"y", color.NRGBA{G: 160, A: 255}, func(v r3.Vector) float64 { return v.Y }},
		{"z", color.NRGBA{B: 220, A: 255}, func(v r3.Vector) float64 { return v.Z }},
	}
	for _, s := range series {
		xys := make(plotter.XYs, len(track))
		for i, tp := range track {
			xys[i].X = float64(tp.index)
			xys[i].Y = s.value(tp.position)
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = s.c
		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(out)
	return err
}
