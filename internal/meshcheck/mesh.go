// Package meshcheck decodes triangle meshes from STL and OBJ payloads and
// answers the geometric questions the slicer's validation gate needs:
// extent, enclosed volume and watertightness.
package meshcheck

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/hexslice/internal/domain"
)

var (
	// ErrNotDecodable is returned for model types whose payload is not a
	// plain triangle list (STEP, 3MF).
	ErrNotDecodable = errors.New("model type carries no decodable mesh")
	// ErrMalformed wraps every parse failure.
	ErrMalformed = errors.New("malformed mesh")
)

// Triangle is three vertices in millimetres.
type Triangle [3]r3.Vec

// Mesh is an unindexed triangle soup.
type Mesh struct {
	Triangles []Triangle
}

// Decode parses payload according to the model type.
func Decode(t domain.ModelType, payload []byte) (Mesh, error) {
	switch t {
	case domain.STL:
		return DecodeSTL(payload)
	case domain.OBJ:
		return DecodeOBJ(payload)
	}
	return Mesh{}, fmt.Errorf("%w: %s", ErrNotDecodable, t)
}

// Bounds returns the axis-aligned bounding box. An empty mesh yields the
// zero box.
func (m Mesh) Bounds() r3.Box {
	if len(m.Triangles) == 0 {
		return r3.Box{}
	}
	inf := math.Inf(1)
	b := r3.Box{
		Min: r3.Vec{X: inf, Y: inf, Z: inf},
		Max: r3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
	for _, t := range m.Triangles {
		for _, v := range t {
			b.Min.X = math.Min(b.Min.X, v.X)
			b.Min.Y = math.Min(b.Min.Y, v.Y)
			b.Min.Z = math.Min(b.Min.Z, v.Z)
			b.Max.X = math.Max(b.Max.X, v.X)
			b.Max.Y = math.Max(b.Max.Y, v.Y)
			b.Max.Z = math.Max(b.Max.Z, v.Z)
		}
	}
	return b
}

// Size returns the extent of the bounding box along each axis.
func (m Mesh) Size() r3.Vec {
	b := m.Bounds()
	return r3.Sub(b.Max, b.Min)
}

// Volume is the signed volume enclosed by the mesh, summed over the
// tetrahedra each face forms with the origin. Outward-wound solids are
// positive.
func (m Mesh) Volume() float64 {
	var sum float64
	for _, t := range m.Triangles {
		sum += r3.Dot(t[0], r3.Cross(t[1], t[2]))
	}
	return sum / 6
}

// vertexKey quantises a vertex to micrometres so that coordinates written
// with different float precision still weld together.
type vertexKey [3]int64

func keyOf(v r3.Vec) vertexKey {
	return vertexKey{
		int64(math.Round(v.X * 1000)),
		int64(math.Round(v.Y * 1000)),
		int64(math.Round(v.Z * 1000)),
	}
}

type edgeKey [2]vertexKey

func less(a, b vertexKey) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func newEdge(a, b vertexKey) edgeKey {
	if less(b, a) {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// NonManifoldEdges counts edges not shared by exactly two faces. A closed,
// watertight surface has none.
func (m Mesh) NonManifoldEdges() int {
	counts := make(map[edgeKey]int, len(m.Triangles)*3/2)
	for _, t := range m.Triangles {
		k := [3]vertexKey{keyOf(t[0]), keyOf(t[1]), keyOf(t[2])}
		for i := 0; i < 3; i++ {
			a, b := k[i], k[(i+1)%3]
			if a == b {
				continue // degenerate edge
			}
			counts[newEdge(a, b)]++
		}
	}
	bad := 0
	for _, n := range counts {
		if n != 2 {
			bad++
		}
	}
	return bad
}
