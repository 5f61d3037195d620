package meshcheck

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// DecodeOBJ parses the geometry of a Wavefront OBJ payload. Only "v" and "f"
// statements matter; polygons are fan-triangulated and negative indices are
// relative to the vertices read so far.
func DecodeOBJ(payload []byte) (Mesh, error) {
	var (
		m      Mesh
		verts  []r3.Vec
		lineNo int
	)
	sc := bufio.NewScanner(bytes.NewReader(payload))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return Mesh{}, fmt.Errorf("%w: line %d: vertex needs 3 coordinates", ErrMalformed, lineNo)
			}
			v, err := parseVec(fields[1:4])
			if err != nil {
				return Mesh{}, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
			}
			verts = append(verts, v)
		case "f":
			if len(fields) < 4 {
				return Mesh{}, fmt.Errorf("%w: line %d: face needs at least 3 vertices", ErrMalformed, lineNo)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				i, err := resolveIndex(tok, len(verts))
				if err != nil {
					return Mesh{}, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
				}
				idx = append(idx, i)
			}
			for k := 1; k+1 < len(idx); k++ {
				m.Triangles = append(m.Triangles, Triangle{verts[idx[0]], verts[idx[k]], verts[idx[k+1]]})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Mesh{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}

// resolveIndex turns an OBJ face token ("3", "3/1", "3//2", "-1") into a
// zero-based vertex index.
func resolveIndex(tok string, n int) (int, error) {
	if slash := strings.IndexByte(tok, '/'); slash >= 0 {
		tok = tok[:slash]
	}
	i, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("bad face index %q", tok)
	}
	switch {
	case i > 0 && i <= n:
		return i - 1, nil
	case i < 0 && -i <= n:
		return n + i, nil
	}
	return 0, fmt.Errorf("face index %d out of range (%d vertices)", i, n)
}
