package meshcheck

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	stlHeaderSize = 80
	stlRecordSize = 50
)

// isBinarySTL applies the size rule: 80-byte header, a uint32 triangle count
// n, then exactly n 50-byte records.
func isBinarySTL(payload []byte) bool {
	if len(payload) < stlHeaderSize+4 {
		return false
	}
	n := binary.LittleEndian.Uint32(payload[stlHeaderSize:])
	return uint64(len(payload)) == uint64(stlHeaderSize+4)+uint64(n)*stlRecordSize
}

// DecodeSTL parses a binary or ASCII STL payload.
func DecodeSTL(payload []byte) (Mesh, error) {
	if isBinarySTL(payload) {
		return decodeBinarySTL(payload)
	}
	return decodeASCIISTL(payload)
}

func decodeBinarySTL(payload []byte) (Mesh, error) {
	n := int(binary.LittleEndian.Uint32(payload[stlHeaderSize:]))
	m := Mesh{Triangles: make([]Triangle, 0, n)}
	off := stlHeaderSize + 4
	f := func(i int) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[i:])))
	}
	for i := 0; i < n; i++ {
		rec := off + i*stlRecordSize + 12 // skip the stored normal
		var t Triangle
		for v := 0; v < 3; v++ {
			base := rec + v*12
			t[v] = r3.Vec{X: f(base), Y: f(base + 4), Z: f(base + 8)}
			if !finite(t[v]) {
				return Mesh{}, fmt.Errorf("%w: triangle %d has a non-finite vertex", ErrMalformed, i)
			}
		}
		m.Triangles = append(m.Triangles, t)
	}
	return m, nil
}

func finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func decodeASCIISTL(payload []byte) (Mesh, error) {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("solid")) {
		return Mesh{}, fmt.Errorf("%w: STL is neither binary nor ASCII", ErrMalformed)
	}

	var (
		m       Mesh
		pending []r3.Vec
		lineNo  int
	)
	sc := bufio.NewScanner(bytes.NewReader(payload))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "vertex":
			if len(fields) != 4 {
				return Mesh{}, fmt.Errorf("%w: line %d: vertex needs 3 coordinates", ErrMalformed, lineNo)
			}
			v, err := parseVec(fields[1:])
			if err != nil {
				return Mesh{}, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
			}
			pending = append(pending, v)
		case "endloop":
			if len(pending) != 3 {
				return Mesh{}, fmt.Errorf("%w: line %d: facet has %d vertices", ErrMalformed, lineNo, len(pending))
			}
			m.Triangles = append(m.Triangles, Triangle{pending[0], pending[1], pending[2]})
			pending = pending[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return Mesh{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(pending) != 0 {
		return Mesh{}, fmt.Errorf("%w: unterminated facet", ErrMalformed)
	}
	return m, nil
}

func parseVec(fields []string) (r3.Vec, error) {
	var c [3]float64
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return r3.Vec{}, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return r3.Vec{}, fmt.Errorf("non-finite coordinate %q", fields[i])
		}
		c[i] = f
	}
	return r3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}
