package hnsw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/vectralite/vectralite/vector"
)

// Magic identifies a serialized graph blob ("VGX1").
const Magic uint32 = 0x56475831

// ErrInvalidEncoding indicates a blob that does not parse as a graph: wrong
// magic, truncated data, or inconsistent counts.
var ErrInvalidEncoding = errors.New("hnsw: invalid graph encoding")

const headerSize = 4 + 2 + 2 + 4 + 2

// MarshalBinary serializes the graph: a fixed header (magic, dim, M, node
// count, max level), then per node its id, level count, raw vector, and per
// level a neighbor count followed by neighbor ids. Padded capacity is not
// written; only real neighbors are. All multi-byte values are big-endian.
func (g *Graph) MarshalBinary() ([]byte, error) {
	if g.dim > math.MaxUint16 || g.cfg.M > math.MaxUint16 ||
		uint64(len(g.nodes)) > math.MaxUint32 || g.maxLevel > math.MaxUint16 {
		return nil, fmt.Errorf("hnsw: graph parameters out of encodable range")
	}
	size := headerSize
	for i := range g.nodes {
		n := &g.nodes[i]
		size += 4 + 1 + 4*g.dim
		for l := 0; l <= n.level; l++ {
			size += 2 + 4*len(n.neighbors[l])
		}
	}
	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint32(buf, Magic)
	buf = binary.BigEndian.AppendUint16(buf, uint16(g.dim))
	buf = binary.BigEndian.AppendUint16(buf, uint16(g.cfg.M))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(g.nodes)))
	buf = binary.BigEndian.AppendUint16(buf, uint16(g.maxLevel))

	for i := range g.nodes {
		n := &g.nodes[i]
		if n.id < 0 || n.id > math.MaxUint32 {
			return nil, fmt.Errorf("hnsw: node id %d out of encodable range", n.id)
		}
		if n.level+1 > math.MaxUint8 {
			return nil, fmt.Errorf("hnsw: node %d level %d out of encodable range", n.id, n.level)
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(n.id))
		buf = append(buf, uint8(n.level+1))
		for _, v := range n.vector {
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(v))
		}
		for l := 0; l <= n.level; l++ {
			buf = binary.BigEndian.AppendUint16(buf, uint16(len(n.neighbors[l])))
			for _, nb := range n.neighbors[l] {
				buf = binary.BigEndian.AppendUint32(buf, uint32(g.nodes[nb].id))
			}
		}
	}
	return buf, nil
}

// Decode reconstructs a graph from a blob produced by MarshalBinary. The
// dimension and M are taken from the blob; search parameters come from cfg.
// Neighbor lists are restored into capacity-M slices, matching the in-memory
// representation the builder produces. The entry point is recomputed as the
// first node in stored order whose level equals the stored maximum: insertion
// order is preserved on the wire and the builder only promotes entry points
// on strictly greater levels, so the reconstruction is exact.
func Decode(data []byte, cfg Config) (*Graph, error) {
	r := reader{data: data}
	magic, err := r.u32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrInvalidEncoding, magic)
	}
	dim, err := r.u16()
	if err != nil {
		return nil, err
	}
	m, err := r.u16()
	if err != nil {
		return nil, err
	}
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	maxLevel, err := r.u16()
	if err != nil {
		return nil, err
	}
	if dim == 0 && count > 0 {
		return nil, fmt.Errorf("%w: zero dimension with %d nodes", ErrInvalidEncoding, count)
	}

	cfg.M = int(m)
	cfg.Dim = int(dim)
	g := New(cfg)
	g.maxLevel = int(maxLevel)
	g.nodes = make([]node, 0, count)

	type pending struct {
		level int
		ids   []uint32
	}
	deferred := make([][]pending, 0, count)

	for i := uint32(0); i < count; i++ {
		id, err := r.u32()
		if err != nil {
			return nil, err
		}
		levels, err := r.u8()
		if err != nil {
			return nil, err
		}
		if levels == 0 {
			return nil, fmt.Errorf("%w: node %d has zero levels", ErrInvalidEncoding, id)
		}
		vec := make([]float32, dim)
		for j := range vec {
			bits, err := r.u32()
			if err != nil {
				return nil, err
			}
			vec[j] = math.Float32frombits(bits)
		}
		n := node{
			id:        int64(id),
			vector:    vec,
			mag:       vector.Magnitude(vec),
			level:     int(levels) - 1,
			neighbors: make([][]uint32, levels),
		}
		links := make([]pending, levels)
		for l := 0; l < int(levels); l++ {
			nn, err := r.u16()
			if err != nil {
				return nil, err
			}
			if int(nn) > int(m) {
				return nil, fmt.Errorf("%w: node %d level %d has %d neighbors, cap %d",
					ErrInvalidEncoding, id, l, nn, m)
			}
			ids := make([]uint32, nn)
			for j := range ids {
				if ids[j], err = r.u32(); err != nil {
					return nil, err
				}
			}
			links[l] = pending{level: l, ids: ids}
		}
		if _, dup := g.byID[n.id]; dup {
			return nil, fmt.Errorf("%w: duplicate node id %d", ErrInvalidEncoding, id)
		}
		g.byID[n.id] = uint32(len(g.nodes))
		g.nodes = append(g.nodes, n)
		deferred = append(deferred, links)
	}
	if !r.done() {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidEncoding, r.remaining())
	}

	// Resolve neighbor ids to positions once every node is known.
	for i := range g.nodes {
		n := &g.nodes[i]
		for _, p := range deferred[i] {
			list := make([]uint32, 0, cfg.M)
			for _, id := range p.ids {
				pos, ok := g.byID[int64(id)]
				if !ok {
					return nil, fmt.Errorf("%w: node %d references unknown neighbor %d",
						ErrInvalidEncoding, n.id, id)
				}
				list = append(list, pos)
			}
			n.neighbors[p.level] = list
		}
	}

	for i := range g.nodes {
		if g.nodes[i].level == g.maxLevel {
			g.entry = int32(i)
			break
		}
	}
	if count > 0 && g.entry < 0 {
		return nil, fmt.Errorf("%w: no node at max level %d", ErrInvalidEncoding, maxLevel)
	}
	return g, nil
}

// reader is a bounds-checked big-endian cursor over a blob.
type reader struct {
	data []byte
	off  int
}

func (r *reader) take(n int) ([]byte, error) {
	if r.off+n > len(r.data) {
		return nil, fmt.Errorf("%w: truncated at offset %d", ErrInvalidEncoding, r.off)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) done() bool     { return r.off == len(r.data) }
func (r *reader) remaining() int { return len(r.data) - r.off }
