package rimage

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/golang/geo/r3"
	"golang.org/x/image/font/gofont/goregular"

	"go.viam.com/posetrack/spatialmath"
)

var font *truetype.Font

// init sets up the fonts we want to use.
func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Font returns the font we use for drawing.
func Font() *truetype.Font {
	return font
}

// Projector maps a camera frame point in meters to image coordinates.
type Projector interface {
	PointToPixel(x, y, z float64) (float64, float64)
}

// Overlay colors.
var (
	BoxColor   = color.NRGBA{0, 255, 0, 255}
	AxisXColor = color.NRGBA{255, 0, 0, 255}
	AxisYColor = color.NRGBA{0, 255, 0, 255}
	AxisZColor = color.NRGBA{0, 0, 255, 255}
)

// NewContext returns a drawing context over a copy of img.
func NewContext(img *Image) *gg.Context {
	return gg.NewContextForImage(img.NRGBA())
}

// ContextImage returns the current contents of the drawing context.
func ContextImage(dc *gg.Context) *Image {
	return NewImageFromStdImage(dc.Image())
}

// DrawString writes a string to the given context at a particular point.
func DrawString(dc *gg.Context, text string, p image.Point, c color.Color, size float64) {
	dc.SetFontFace(truetype.NewFace(Font(), &truetype.Options{Size: size}))
	dc.SetColor(c)
	dc.DrawStringWrapped(text, float64(p.X), float64(p.Y), 0, 0, float64(dc.Width()), 1, 0)
}

// DrawPosedBox draws the twelve edges of a box with the given extents centered at center, a
// pose in the camera frame. Edges with an endpoint behind the camera are skipped.
func DrawPosedBox(dc *gg.Context, proj Projector, center spatialmath.Pose, extents r3.Vector, c color.Color, width float64) error {
	box, err := spatialmath.NewBox(center, extents)
	if err != nil {
		return err
	}
	dc.SetColor(c)
	dc.SetLineWidth(width)
	for _, edge := range box.Edges() {
		drawSegment(dc, proj, edge[0], edge[1])
	}
	return nil
}

// DrawAxes draws the x, y and z axes of pose, each scale meters long, in red, green and blue.
func DrawAxes(dc *gg.Context, proj Projector, pose spatialmath.Pose, scale, width float64) {
	origin := pose.Point()
	axes := []struct {
		dir r3.Vector
		c   color.Color
	}{
		{r3.Vector{X: scale}, AxisXColor},
		{r3.Vector{Y: scale}, AxisYColor},
		{r3.Vector{Z: scale}, AxisZColor},
	}
	dc.SetLineWidth(width)
	for _, axis := range axes {
		dc.SetColor(axis.c)
		drawSegment(dc, proj, origin, spatialmath.TransformPoint(pose, axis.dir))
	}
}

func drawSegment(dc *gg.Context, proj Projector, a, b r3.Vector) {
	if a.Z <= 0 || b.Z <= 0 {
		return
	}
	ax, ay := proj.PointToPixel(a.X, a.Y, a.Z)
	bx, by := proj.PointToPixel(b.X, b.Y, b.Z)
	dc.DrawLine(ax, ay, bx, by)
	dc.Stroke()
}
