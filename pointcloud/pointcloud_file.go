package pointcloud

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
)

// Format is a point cloud file format.
type Format string

// Supported formats.
const (
	FormatPLY      Format = "ply"
	FormatPCD      Format = "pcd"
	FormatPCDAscii Format = "pcd_ascii"
)

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	if f == FormatPCDAscii {
		return ".pcd"
	}
	return "." + string(f)
}

// Validate returns an error for an unknown format.
func (f Format) Validate() error {
	switch f {
	case FormatPLY, FormatPCD, FormatPCDAscii:
		return nil
	default:
		return errors.Errorf("unsupported point cloud format %q", string(f))
	}
}

// Encode writes the cloud to out in the given format.
func Encode(cloud PointCloud, out io.Writer, format Format) error {
	switch format {
	case FormatPLY:
		return ToPLY(cloud, out)
	case FormatPCD:
		return ToPCD(cloud, out, PCDBinary)
	case FormatPCDAscii:
		return ToPCD(cloud, out, PCDAscii)
	default:
		return format.Validate()
	}
}

// ToPLY writes the cloud as an ascii PLY file with float coordinates and, when the cloud has
// color, uchar red/green/blue properties.
func ToPLY(cloud PointCloud, out io.Writer) error {
	hasColor := cloud.MetaData().HasColor
	header := "ply\nformat ascii 1.0\n" +
		fmt.Sprintf("element vertex %d\n", cloud.Size()) +
		"property float x\nproperty float y\nproperty float z\n"
	if hasColor {
		header += "property uchar red\nproperty uchar green\nproperty uchar blue\n"
	}
	header += "end_header\n"
	if _, err := io.WriteString(out, header); err != nil {
		return err
	}

	var err error
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		if hasColor {
			r, g, b := colorOf(d)
			_, err = fmt.Fprintf(out, "%f %f %f %d %d %d\n", p.X, p.Y, p.Z, r, g, b)
		} else {
			_, err = fmt.Fprintf(out, "%f %f %f\n", p.X, p.Y, p.Z)
		}
		return err == nil
	})
	return err
}

func colorOf(d Data) (uint8, uint8, uint8) {
	if d == nil || !d.HasColor() {
		return 0, 0, 0
	}
	return d.RGB255()
}

func colorToPCDInt(d Data) int {
	r, g, b := colorOf(d)
	x := 0
	x |= (int(r) << 16)
	x |= (int(g) << 8)
	x |= (int(b) << 0)
	return x
}

// ToPCD writes the cloud in the PCD v0.7 format. Positions are written in meters.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	var err error

	_, err = fmt.Fprintf(out, "VERSION .7\n")
	if err != nil {
		return err
	}
	switch cloud.MetaData().HasColor {
	case true:
		_, err = fmt.Fprintf(out, "FIELDS x y z rgb\n"+
			"SIZE 4 4 4 4\n"+
			"TYPE F F F I\n"+
			"COUNT 1 1 1 1\n")
	case false:
		_, err = fmt.Fprintf(out, "FIELDS x y z\n"+
			"SIZE 4 4 4\n"+
			"TYPE F F F\n"+
			"COUNT 1 1 1\n")
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n",
		cloud.Size(),
		1,
		cloud.Size())
	if err != nil {
		return err
	}

	switch outputType {
	case PCDBinary:
		_, err = fmt.Fprintf(out, "DATA binary\n")
	case PCDAscii:
		_, err = fmt.Fprintf(out, "DATA ascii\n")
	default:
		return errors.Errorf("unknown pcd type %d", outputType)
	}
	if err != nil {
		return err
	}
	return writePCDData(cloud, out, outputType)
}

func writePCDData(cloud PointCloud, out io.Writer, pcdtype PCDType) error {
	hasColor := cloud.MetaData().HasColor
	var err error
	cloud.Iterate(0, 0, func(pos r3.Vector, d Data) bool {
		switch pcdtype {
		case PCDBinary:
			buf := make([]byte, 12, 16)
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(pos.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(pos.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(pos.Z)))
			if hasColor {
				buf = binary.LittleEndian.AppendUint32(buf, uint32(colorToPCDInt(d)))
			}
			_, err = out.Write(buf)
		case PCDAscii:
			if hasColor {
				_, err = fmt.Fprintf(out, "%f %f %f %d\n", pos.X, pos.Y, pos.Z, colorToPCDInt(d))
			} else {
				_, err = fmt.Fprintf(out, "%f %f %f\n", pos.X, pos.Y, pos.Z)
			}
		}
		return err == nil
	})
	return err
}
