package pointcloud

import (
	"bytes"
	"encoding/binary"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func makeCloud(t *testing.T) PointCloud {
	t.Helper()
	pc := New()
	test.That(t, pc.Set(r3.Vector{X: 0.1, Y: -0.2, Z: 0.5}, NewColoredData(color.NRGBA{255, 0, 0, 255})), test.ShouldBeNil)
	test.That(t, pc.Set(r3.Vector{X: -0.1, Y: 0.2, Z: 0.7}, NewColoredData(color.NRGBA{0, 0, 255, 255})), test.ShouldBeNil)
	return pc
}

func TestBasicPointCloud(t *testing.T) {
	pc := New()
	test.That(t, pc.Size(), test.ShouldEqual, 0)
	test.That(t, pc.MetaData().HasColor, test.ShouldBeFalse)

	p0 := r3.Vector{X: 1, Y: 2, Z: 3}
	test.That(t, pc.Set(p0, NewBasicData()), test.ShouldBeNil)
	d, ok := pc.At(1, 2, 3)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, d.HasColor(), test.ShouldBeFalse)
	_, ok = pc.At(3, 2, 1)
	test.That(t, ok, test.ShouldBeFalse)

	// replacing keeps size but picks up the color
	test.That(t, pc.Set(p0, NewColoredData(color.NRGBA{1, 2, 3, 255})), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 1)
	test.That(t, pc.MetaData().HasColor, test.ShouldBeTrue)

	test.That(t, pc.Set(r3.Vector{X: -1, Y: 0, Z: 5}, nil), test.ShouldBeNil)
	meta := pc.MetaData()
	test.That(t, meta.MinX, test.ShouldEqual, -1)
	test.That(t, meta.MaxX, test.ShouldEqual, 1)
	test.That(t, meta.MaxZ, test.ShouldEqual, 5)
	test.That(t, meta.Center(), test.ShouldResemble, r3.Vector{X: 0, Y: 1, Z: 4})

	err := pc.Set(r3.Vector{X: math.NaN()}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 2)
}

func TestIterateBatches(t *testing.T) {
	pc := NewWithPrealloc(10)
	for i := 0; i < 10; i++ {
		test.That(t, pc.Set(r3.Vector{X: float64(i)}, nil), test.ShouldBeNil)
	}
	var seen []float64
	for batch := 0; batch < 3; batch++ {
		pc.Iterate(3, batch, func(p r3.Vector, d Data) bool {
			seen = append(seen, p.X)
			return true
		})
	}
	test.That(t, seen, test.ShouldResemble, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})

	count := 0
	pc.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		count++
		return count < 4
	})
	test.That(t, count, test.ShouldEqual, 4)
}

func TestToPLY(t *testing.T) {
	var buf bytes.Buffer
	test.That(t, ToPLY(makeCloud(t), &buf), test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	test.That(t, lines[0], test.ShouldEqual, "ply")
	test.That(t, lines[2], test.ShouldEqual, "element vertex 2")
	test.That(t, buf.String(), test.ShouldContainSubstring, "property uchar red\n")
	test.That(t, lines[len(lines)-3], test.ShouldEqual, "end_header")
	test.That(t, lines[len(lines)-2], test.ShouldEqual, "0.100000 -0.200000 0.500000 255 0 0")
	test.That(t, lines[len(lines)-1], test.ShouldEqual, "-0.100000 0.200000 0.700000 0 0 255")

	plain := New()
	test.That(t, plain.Set(r3.Vector{Z: 1}, nil), test.ShouldBeNil)
	buf.Reset()
	test.That(t, ToPLY(plain, &buf), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldNotContainSubstring, "red")
	test.That(t, buf.String(), test.ShouldEndWith, "0.000000 0.000000 1.000000\n")
}

func TestToPCD(t *testing.T) {
	cloud := makeCloud(t)
	var buf bytes.Buffer
	test.That(t, ToPCD(cloud, &buf, PCDAscii), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, "FIELDS x y z rgb\n")
	test.That(t, buf.String(), test.ShouldContainSubstring, "POINTS 2\n")
	test.That(t, buf.String(), test.ShouldContainSubstring, "0.100000 -0.200000 0.500000 16711680\n")

	buf.Reset()
	test.That(t, ToPCD(cloud, &buf, PCDBinary), test.ShouldBeNil)
	out := buf.Bytes()
	idx := bytes.Index(out, []byte("DATA binary\n"))
	test.That(t, idx, test.ShouldBeGreaterThan, 0)
	data := out[idx+len("DATA binary\n"):]
	test.That(t, data, test.ShouldHaveLength, 2*16)
	z := math.Float32frombits(binary.LittleEndian.Uint32(data[8:]))
	test.That(t, z, test.ShouldAlmostEqual, float32(0.5))
	test.That(t, binary.LittleEndian.Uint32(data[28:]), test.ShouldEqual, uint32(255))

	test.That(t, ToPCD(cloud, &buf, PCDType(7)), test.ShouldNotBeNil)
}

func TestEncode(t *testing.T) {
	cloud := makeCloud(t)
	var buf bytes.Buffer
	test.That(t, Encode(cloud, &buf, FormatPLY), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldStartWith, "ply\n")

	buf.Reset()
	test.That(t, Encode(cloud, &buf, FormatPCD), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, "DATA binary\n")

	buf.Reset()
	test.That(t, Encode(cloud, &buf, FormatPCDAscii), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, "DATA ascii\n")

	test.That(t, Encode(cloud, &buf, Format("xyz")), test.ShouldNotBeNil)
	test.That(t, Format("xyz").Validate(), test.ShouldNotBeNil)
	test.That(t, FormatPLY.Ext(), test.ShouldEqual, ".ply")
	test.That(t, FormatPCD.Ext(), test.ShouldEqual, ".pcd")
	test.That(t, FormatPCDAscii.Ext(), test.ShouldEqual, ".pcd")
}
