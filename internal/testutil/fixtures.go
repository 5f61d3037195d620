package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Triangle is three vertices in millimetres, wound counter-clockwise when
// viewed from outside the solid.
type Triangle [3][3]float64

// cubeQuads lists the six faces of a unit cube, outward-wound.
var cubeQuads = [6][4][3]float64{
	{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}, // bottom
	{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}, // top
	{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}, // front
	{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}, // back
	{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}, // left
	{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}, // right
}

// CubeTriangles returns the 12 triangles of an axis-aligned cube with one
// corner at the origin.
func CubeTriangles(size float64) []Triangle {
	tris := make([]Triangle, 0, 12)
	for _, q := range cubeQuads {
		var s [4][3]float64
		for i, v := range q {
			s[i] = [3]float64{v[0] * size, v[1] * size, v[2] * size}
		}
		tris = append(tris, Triangle{s[0], s[1], s[2]}, Triangle{s[0], s[2], s[3]})
	}
	return tris
}

func normal(t Triangle) [3]float64 {
	ux, uy, uz := t[1][0]-t[0][0], t[1][1]-t[0][1], t[1][2]-t[0][2]
	vx, vy, vz := t[2][0]-t[0][0], t[2][1]-t[0][1], t[2][2]-t[0][2]
	n := [3]float64{uy*vz - uz*vy, uz*vx - ux*vz, ux*vy - uy*vx}
	l := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if l == 0 {
		return n
	}
	return [3]float64{n[0] / l, n[1] / l, n[2] / l}
}

// ASCIISTL renders triangles as an ASCII STL solid.
func ASCIISTL(name string, tris []Triangle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "solid %s\n", name)
	for _, t := range tris {
		n := normal(t)
		fmt.Fprintf(&b, "  facet normal %g %g %g\n    outer loop\n", n[0], n[1], n[2])
		for _, v := range t {
			fmt.Fprintf(&b, "      vertex %g %g %g\n", v[0], v[1], v[2])
		}
		b.WriteString("    endloop\n  endfacet\n")
	}
	fmt.Fprintf(&b, "endsolid %s\n", name)
	return b.String()
}

// BinarySTL renders triangles in the 80-byte-header binary STL layout.
func BinarySTL(tris []Triangle) []byte {
	var buf bytes.Buffer
	header := make([]byte, 80)
	copy(header, "binary hexslice fixture")
	buf.Write(header)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(tris)))
	for _, t := range tris {
		n := normal(t)
		rec := make([]float32, 0, 12)
		rec = append(rec, float32(n[0]), float32(n[1]), float32(n[2]))
		for _, v := range t {
			rec = append(rec, float32(v[0]), float32(v[1]), float32(v[2]))
		}
		_ = binary.Write(&buf, binary.LittleEndian, rec)
		_ = binary.Write(&buf, binary.LittleEndian, uint16(0))
	}
	return buf.Bytes()
}

// CubeSTL is a closed 10 mm ASCII STL cube.
func CubeSTL() []byte {
	return []byte(ASCIISTL("cube", CubeTriangles(10)))
}

// OpenBoxSTL is a 10 mm cube with its top face removed, so it is not
// watertight.
func OpenBoxSTL() []byte {
	tris := CubeTriangles(10)
	return []byte(ASCIISTL("openbox", append(tris[:2:2], tris[4:]...)))
}

// CubeOBJ is a 10 mm cube described with eight vertices and six quads.
func CubeOBJ() []byte {
	var b strings.Builder
	b.WriteString("# hexslice cube\no cube\n")
	for z := 0; z <= 1; z++ {
		for y := 0; y <= 1; y++ {
			for x := 0; x <= 1; x++ {
				fmt.Fprintf(&b, "v %d %d %d\n", x*10, y*10, z*10)
			}
		}
	}
	// vertex index = 1 + x + 2y + 4z
	b.WriteString(strings.Join([]string{
		"f 1 3 4 2",
		"f 5 6 8 7",
		"f 1 2 6 5",
		"f 3 7 8 4",
		"f 1 5 7 3",
		"f 2 4 8 6",
	}, "\n"))
	b.WriteString("\n")
	return []byte(b.String())
}

// StepPayload is a minimal ISO 10303-21 exchange file.
func StepPayload() []byte {
	return []byte("ISO-10303-21;\nHEADER;\nFILE_DESCRIPTION(('cube'),'2;1');\nENDSEC;\nDATA;\nENDSEC;\nEND-ISO-10303-21;\n")
}

// ThreeMFPayload begins with the zip local file header signature a 3MF
// package carries.
func ThreeMFPayload() []byte {
	return append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0}, 26)...)
}
