package columnar

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/pool"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// String value encodings
const (
	stringPlain      byte = 0
	stringDictionary byte = 1
)

// MaxChunkValues caps the level entries a single chunk may hold
const MaxChunkValues = math.MaxInt32

// MaxEntries is the largest entry count a chunk of leaf l can encode in
// uncompressed bytes. A leaf that is never null stores at least one bit per
// entry; levels of other leaves are run-length encoded and only the chunk
// cap applies.
func MaxEntries(l schema.Leaf, uncompressed int64) int64 {
	if l.MaxDef > 0 || uncompressed > MaxChunkValues/8 {
		return MaxChunkValues
	}
	return uncompressed * 8
}

// dictionaryThreshold is the distinct/total ratio under which strings are
// dictionary encoded
const dictionaryThreshold = 0.5

// ChunkInfo locates and describes one encoded column chunk
type ChunkInfo struct {
	Path               string `json:"path"`
	Offset             int64  `json:"offset"`
	Length             int64  `json:"length"`
	UncompressedLength int64  `json:"uncompressed_length"`
	NumValues          int64  `json:"num_values"`
	Checksum           uint64 `json:"checksum"`
}

// EncodedChunk is a compressed column chunk ready to be written
type EncodedChunk struct {
	Info ChunkInfo
	Data []byte
}

// EncodeChunk serializes and compresses one column
func EncodeChunk(col *Column, comp compression.Compressor) (*EncodedChunk, error) {
	if col.Len() > MaxChunkValues {
		return nil, errors.Newf(errors.ErrorTypeConfig, "column chunk holds %d entries, the limit is %d", col.Len(), MaxChunkValues).
			WithDetail("path", col.Leaf.Path)
	}
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	raw := appendLevels(buf.B, col.Rep, col.Leaf.MaxRep)
	raw = appendLevels(raw, col.Def, col.Leaf.MaxDef)
	raw, err := appendValues(raw, col.Leaf.Field, col.Values)
	if err != nil {
		return nil, err
	}
	buf.B = raw

	data, err := comp.Compress(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to compress column chunk").
			WithDetail("path", col.Leaf.Path)
	}
	if comp.Algorithm() == compression.None {
		// the pass-through codec hands back the pooled scratch space
		data = append([]byte(nil), data...)
	}
	return &EncodedChunk{
		Info: ChunkInfo{
			Path:               col.Leaf.Path,
			Length:             int64(len(data)),
			UncompressedLength: int64(len(raw)),
			NumValues:          int64(col.Len()),
			Checksum:           xxhash.Sum64(data),
		},
		Data: data,
	}, nil
}

// DecodeChunk verifies, decompresses and parses a chunk for leaf l
func DecodeChunk(l schema.Leaf, info ChunkInfo, data []byte, comp compression.Compressor, verify bool) (*Column, error) {
	if int64(len(data)) != info.Length {
		return nil, corrupt(l.Path, "chunk length mismatch").WithDetail("want", info.Length).WithDetail("got", len(data))
	}
	if verify && xxhash.Sum64(data) != info.Checksum {
		return nil, corrupt(l.Path, "chunk checksum mismatch")
	}
	raw, err := comp.Decompress(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCorruptColumnData, "failed to decompress column chunk").
			WithDetail("path", l.Path)
	}
	if int64(len(raw)) != info.UncompressedLength {
		return nil, corrupt(l.Path, "uncompressed length mismatch")
	}

	if info.NumValues < 0 || info.NumValues > MaxEntries(l, info.UncompressedLength) {
		return nil, corrupt(l.Path, "entry count exceeds what the chunk can hold").
			WithDetail("num_values", info.NumValues)
	}
	n := int(info.NumValues)
	d := &chunkDecoder{buf: raw, path: l.Path}
	col := &Column{Leaf: l}
	if col.Rep, err = d.levels(n, l.MaxRep); err != nil {
		return nil, err
	}
	if col.Def, err = d.levels(n, l.MaxDef); err != nil {
		return nil, err
	}
	present := n
	if l.MaxDef > 0 {
		present = 0
		for _, def := range col.Def {
			if int(def) == l.MaxDef {
				present++
			}
		}
	}
	if col.Values, err = d.values(l.Field, present); err != nil {
		return nil, err
	}
	if len(d.buf) != 0 {
		return nil, corrupt(l.Path, "trailing bytes after chunk values")
	}
	return col, nil
}

// appendLevels writes RLE runs of (uvarint count, uvarint level). A stream
// whose maximum is zero is implied and takes no space.
func appendLevels(buf []byte, levels []uint16, max int) []byte {
	if max == 0 {
		return buf
	}
	for i := 0; i < len(levels); {
		j := i + 1
		for j < len(levels) && levels[j] == levels[i] {
			j++
		}
		buf = binary.AppendUvarint(buf, uint64(j-i))
		buf = binary.AppendUvarint(buf, uint64(levels[i]))
		i = j
	}
	return buf
}

func appendValues(buf []byte, f *schema.Field, values []models.Value) ([]byte, error) {
	switch f.Type {
	case schema.TypeInt8:
		for _, v := range values {
			buf = append(buf, byte(int8(v.Int())))
		}
	case schema.TypeInt16:
		for _, v := range values {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(int16(v.Int())))
		}
	case schema.TypeFloat64:
		for _, v := range values {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float()))
		}
	case schema.TypeBoolean:
		packed := make([]byte, (len(values)+7)/8)
		for i, v := range values {
			if v.Bool() {
				packed[i/8] |= 1 << (i % 8)
			}
		}
		buf = append(buf, packed...)
	case schema.TypeEnum:
		for _, v := range values {
			idx := f.SymbolIndex(v.Str())
			if idx < 0 {
				return nil, errors.New(errors.ErrorTypeValue, "undeclared enum symbol").
					WithDetail("path", f.Name).WithDetail("value", v.Str())
			}
			buf = binary.AppendUvarint(buf, uint64(idx))
		}
	case schema.TypeString:
		buf = appendStrings(buf, values)
	default:
		return nil, errors.Newf(errors.ErrorTypeSchema, "field %q is not a scalar", f.Name)
	}
	return buf, nil
}

func appendStrings(buf []byte, values []models.Value) []byte {
	dict := make(map[string]uint64)
	var order []string
	for _, v := range values {
		if _, ok := dict[v.Str()]; !ok {
			dict[v.Str()] = uint64(len(order))
			order = append(order, v.Str())
		}
	}

	if len(values) == 0 || float64(len(order)) >= float64(len(values))*dictionaryThreshold {
		buf = append(buf, stringPlain)
		for _, v := range values {
			buf = appendString(buf, v.Str())
		}
		return buf
	}

	buf = append(buf, stringDictionary)
	buf = binary.AppendUvarint(buf, uint64(len(order)))
	for _, s := range order {
		buf = appendString(buf, s)
	}
	for _, v := range values {
		buf = binary.AppendUvarint(buf, dict[v.Str()])
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

type chunkDecoder struct {
	buf  []byte
	path string
}

func (d *chunkDecoder) uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		return 0, corrupt(d.path, "malformed varint")
	}
	d.buf = d.buf[n:]
	return v, nil
}

func (d *chunkDecoder) take(n int) ([]byte, error) {
	if n < 0 || n > len(d.buf) {
		return nil, corrupt(d.path, "chunk truncated")
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b, nil
}

func (d *chunkDecoder) levels(n, max int) ([]uint16, error) {
	if max == 0 {
		return make([]uint16, n), nil
	}
	out := make([]uint16, 0, min(n, len(d.buf)))
	for len(out) < n {
		run, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		level, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		if run == 0 || run > uint64(n-len(out)) {
			return nil, corrupt(d.path, "level run overflows the entry count")
		}
		if level > uint64(max) {
			return nil, corrupt(d.path, "level exceeds the leaf maximum").WithDetail("level", level)
		}
		for i := uint64(0); i < run; i++ {
			out = append(out, uint16(level))
		}
	}
	return out, nil
}

func (d *chunkDecoder) values(f *schema.Field, n int) ([]models.Value, error) {
	out := make([]models.Value, 0, min(n, len(d.buf)))
	switch f.Type {
	case schema.TypeInt8:
		b, err := d.take(n)
		if err != nil {
			return nil, err
		}
		for _, x := range b {
			out = append(out, models.Int8(int64(int8(x))))
		}
	case schema.TypeInt16:
		b, err := d.take(2 * n)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			out = append(out, models.Int16(int64(int16(binary.LittleEndian.Uint16(b[2*i:])))))
		}
	case schema.TypeFloat64:
		b, err := d.take(8 * n)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			out = append(out, models.Float64(math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))))
		}
	case schema.TypeBoolean:
		b, err := d.take((n + 7) / 8)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			out = append(out, models.Bool(b[i/8]&(1<<(i%8)) != 0))
		}
	case schema.TypeEnum:
		for i := 0; i < n; i++ {
			idx, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			if idx >= uint64(len(f.Symbols)) {
				return nil, corrupt(d.path, "enum index out of range").WithDetail("index", idx)
			}
			out = append(out, models.Enum(f.Symbols[idx]))
		}
	case schema.TypeString:
		return d.strings(n)
	default:
		return nil, corrupt(d.path, "leaf is not a scalar")
	}
	return out, nil
}

func (d *chunkDecoder) strings(n int) ([]models.Value, error) {
	mode, err := d.take(1)
	if err != nil {
		return nil, err
	}
	out := make([]models.Value, 0, min(n, len(d.buf)))
	switch mode[0] {
	case stringPlain:
		for i := 0; i < n; i++ {
			s, err := d.str()
			if err != nil {
				return nil, err
			}
			out = append(out, models.String(s))
		}
	case stringDictionary:
		size, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		if size > uint64(len(d.buf)) {
			return nil, corrupt(d.path, "dictionary larger than chunk")
		}
		dict := make([]string, size)
		for i := range dict {
			if dict[i], err = d.str(); err != nil {
				return nil, err
			}
		}
		for i := 0; i < n; i++ {
			idx, err := d.uvarint()
			if err != nil {
				return nil, err
			}
			if idx >= size {
				return nil, corrupt(d.path, "dictionary index out of range").WithDetail("index", idx)
			}
			out = append(out, models.String(dict[idx]))
		}
	default:
		return nil, corrupt(d.path, "unknown string encoding").WithDetail("mode", mode[0])
	}
	return out, nil
}

func (d *chunkDecoder) str() (string, error) {
	l, err := d.uvarint()
	if err != nil {
		return "", err
	}
	if l > uint64(len(d.buf)) {
		return "", corrupt(d.path, "string overruns chunk")
	}
	b, err := d.take(int(l))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
