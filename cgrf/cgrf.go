// Package cgrf implements the CGRF binary graph format (spec §3, §4.1, §6):
// a content-addressed, schema-validatable serialization of value.Value as an
// arena of typed nodes referenced by index, with a fixed 16-byte header.
//
// Encode is schema-free and always succeeds for any value.Value producible
// by the value package's constructors. Decode performs a DAG-aware,
// memoized walk from the root node and rejects cycles, truncation, and any
// other violation of the graph-buffer invariants. Schema-directed
// validate/encode/decode against an arena of named types lives in
// schema.go of this same package, built on top of ParseGraph/InspectNode.
package cgrf

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/value"
)

// Magic is the 4-byte CGRF header prefix.
var Magic = [4]byte{'C', 'G', 'R', 'F'}

// Version is the only wire version this package emits and accepts.
const Version uint16 = 2

const headerSize = 16
const nodeHeaderSize = 8

// Limits bounds resource usage while parsing an untrusted buffer. Any
// violation is fatal (spec §4.1).
type Limits struct {
	MaxBufferSize  int
	MaxNodeCount   int
	MaxPayloadSize int
	MaxSeqLen      int
}

// DefaultLimits matches spec §4.1's defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxBufferSize:  16 << 20,
		MaxNodeCount:   1 << 20,
		MaxPayloadSize: 8 << 20,
		MaxSeqLen:      1 << 20,
	}
}

// RawNode is one parsed graph-buffer node: its kind byte and raw payload.
type RawNode struct {
	Kind    byte
	Payload []byte
}

// Encode produces a graph buffer whose root is the post-order encoding of
// v. Shared sub-values are always re-emitted as duplicate nodes; decoders
// must tolerate (and this package's Decode does tolerate) genuine sharing
// too, since the format permits either choice.
func Encode(v value.Value) ([]byte, error) {
	enc := &encoder{}
	root, err := enc.encode(v)
	if err != nil {
		return nil, err
	}
	return enc.finish(root), nil
}

type encoder struct {
	nodes []RawNode
}

func (e *encoder) push(kind byte, payload []byte) uint32 {
	idx := uint32(len(e.nodes))
	e.nodes = append(e.nodes, RawNode{Kind: kind, Payload: payload})
	return idx
}

func (e *encoder) finish(root uint32) []byte {
	out := make([]byte, headerSize)
	copy(out[0:4], Magic[:])
	binary.LittleEndian.PutUint16(out[4:6], Version)
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(e.nodes)))
	binary.LittleEndian.PutUint32(out[12:16], root)

	for _, n := range e.nodes {
		hdr := make([]byte, nodeHeaderSize)
		hdr[0] = n.Kind
		binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(n.Payload)))
		out = append(out, hdr...)
		out = append(out, n.Payload...)
	}
	return out
}

func (e *encoder) encode(v value.Value) (uint32, error) {
	switch v.Kind {
	case value.KindBool:
		p := []byte{0}
		if v.Bool {
			p[0] = 1
		}
		return e.push(byte(v.Kind), p), nil
	case value.KindU8:
		return e.push(byte(v.Kind), []byte{byte(v.U64)}), nil
	case value.KindU16:
		p := make([]byte, 2)
		binary.LittleEndian.PutUint16(p, uint16(v.U64))
		return e.push(byte(v.Kind), p), nil
	case value.KindU32:
		p := make([]byte, 4)
		binary.LittleEndian.PutUint32(p, uint32(v.U64))
		return e.push(byte(v.Kind), p), nil
	case value.KindU64, value.KindFlags:
		p := make([]byte, 8)
		binary.LittleEndian.PutUint64(p, v.U64)
		return e.push(byte(v.Kind), p), nil
	case value.KindS8:
		return e.push(byte(v.Kind), []byte{byte(int8(v.S64))}), nil
	case value.KindS16:
		p := make([]byte, 2)
		binary.LittleEndian.PutUint16(p, uint16(int16(v.S64)))
		return e.push(byte(v.Kind), p), nil
	case value.KindS32, value.KindChar:
		p := make([]byte, 4)
		binary.LittleEndian.PutUint32(p, uint32(int32(v.S64)))
		return e.push(byte(v.Kind), p), nil
	case value.KindS64:
		p := make([]byte, 8)
		binary.LittleEndian.PutUint64(p, uint64(v.S64))
		return e.push(byte(v.Kind), p), nil
	case value.KindF32:
		p := make([]byte, 4)
		binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v.F64)))
		return e.push(byte(v.Kind), p), nil
	case value.KindF64:
		p := make([]byte, 8)
		binary.LittleEndian.PutUint64(p, math.Float64bits(v.F64))
		return e.push(byte(v.Kind), p), nil
	case value.KindString:
		return e.push(byte(v.Kind), encodeString(v.Str)), nil
	case value.KindList:
		return e.encodeList(v)
	case value.KindOption:
		return e.encodeOption(v)
	case value.KindResult:
		return e.encodeResult(v)
	case value.KindRecord:
		return e.encodeRecord(v)
	case value.KindVariant:
		return e.encodeVariant(v)
	case value.KindTuple:
		return e.encodeTuple(v)
	default:
		return 0, errors.CodecTypeMismatch("known value kind", v.Kind.String())
	}
}

func (e *encoder) encodeList(v value.Value) (uint32, error) {
	children := make([]uint32, len(v.Items))
	for i, item := range v.Items {
		idx, err := e.encode(item)
		if err != nil {
			return 0, err
		}
		children[i] = idx
	}
	var buf []byte
	buf = append(buf, writeTypeTag(*v.Elem)...)
	buf = append(buf, u32le(uint32(len(children)))...)
	for _, c := range children {
		buf = append(buf, u32le(c)...)
	}
	return e.push(byte(value.KindList), buf), nil
}

func (e *encoder) encodeOption(v value.Value) (uint32, error) {
	var buf []byte
	buf = append(buf, writeTypeTag(*v.Elem)...)
	if v.Present {
		buf = append(buf, 1)
		idx, err := e.encode(*v.Inner)
		if err != nil {
			return 0, err
		}
		buf = append(buf, u32le(idx)...)
	} else {
		buf = append(buf, 0)
	}
	return e.push(byte(value.KindOption), buf), nil
}

func (e *encoder) encodeResult(v value.Value) (uint32, error) {
	var buf []byte
	buf = append(buf, writeTypeTag(*v.Ok)...)
	buf = append(buf, writeTypeTag(*v.Err)...)
	buf = append(buf, u32le(v.Tag)...)
	if v.Present {
		buf = append(buf, 1)
		idx, err := e.encode(*v.Res)
		if err != nil {
			return 0, err
		}
		buf = append(buf, u32le(idx)...)
	} else {
		buf = append(buf, 0)
		buf = append(buf, u32le(0)...)
	}
	return e.push(byte(value.KindResult), buf), nil
}

func (e *encoder) encodeRecord(v value.Value) (uint32, error) {
	children := make([]uint32, len(v.Fields))
	for i, f := range v.Fields {
		idx, err := e.encode(f.Value)
		if err != nil {
			return 0, err
		}
		children[i] = idx
	}
	var buf []byte
	buf = append(buf, encodeString(v.Name)...)
	buf = append(buf, u32le(uint32(len(v.Fields)))...)
	for _, f := range v.Fields {
		buf = append(buf, encodeString(f.Name)...)
	}
	for _, c := range children {
		buf = append(buf, u32le(c)...)
	}
	return e.push(byte(value.KindRecord), buf), nil
}

func (e *encoder) encodeVariant(v value.Value) (uint32, error) {
	children := make([]uint32, len(v.Payload))
	for i, p := range v.Payload {
		idx, err := e.encode(p)
		if err != nil {
			return 0, err
		}
		children[i] = idx
	}
	var buf []byte
	buf = append(buf, encodeString(v.Name)...)
	buf = append(buf, encodeString(v.CaseName)...)
	buf = append(buf, u32le(v.Tag)...)
	buf = append(buf, u32le(uint32(len(children)))...)
	for _, c := range children {
		buf = append(buf, u32le(c)...)
	}
	return e.push(byte(value.KindVariant), buf), nil
}

func (e *encoder) encodeTuple(v value.Value) (uint32, error) {
	children := make([]uint32, len(v.Items))
	for i, item := range v.Items {
		idx, err := e.encode(item)
		if err != nil {
			return 0, err
		}
		children[i] = idx
	}
	var buf []byte
	buf = append(buf, u32le(uint32(len(children)))...)
	for _, c := range children {
		buf = append(buf, u32le(c)...)
	}
	return e.push(byte(value.KindTuple), buf), nil
}

func encodeString(s string) []byte {
	b := []byte(s)
	out := make([]byte, 0, 4+len(b))
	out = append(out, u32le(uint32(len(b)))...)
	out = append(out, b...)
	return out
}

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// Decode inverts Encode: it parses the graph buffer and reconstructs a
// value.Value rooted at the declared root index.
func Decode(data []byte) (value.Value, error) {
	return DecodeWithLimits(data, DefaultLimits())
}

// DecodeWithLimits is Decode with explicit resource limits.
func DecodeWithLimits(data []byte, limits Limits) (value.Value, error) {
	nodes, root, err := ParseGraph(data, limits)
	if err != nil {
		return value.Value{}, err
	}
	return DecodeValue(nodes, root)
}

// ParseGraph parses the fixed header and every node header/payload,
// performing the cheap structural ("basic") validation pass of spec §4.1:
// magic/version, node-count/size limits, in-range root, no trailing bytes,
// and for scalar/tuple nodes the fixed-shape payload and child indices.
// Variable-shape payloads (list/option/result/record/variant) are left to
// DecodeValue or schema-directed validation.
func ParseGraph(data []byte, limits Limits) ([]RawNode, uint32, error) {
	if limits.MaxBufferSize > 0 && len(data) > limits.MaxBufferSize {
		return nil, 0, errors.InvalidEncoding("buffer exceeds max buffer size")
	}
	if len(data) < headerSize {
		return nil, 0, errors.BufferTooSmall(headerSize, len(data))
	}
	if string(data[0:4]) != string(Magic[:]) {
		return nil, 0, errors.InvalidEncoding("bad magic")
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != Version {
		return nil, 0, errors.InvalidEncoding("unsupported version")
	}
	nodeCount := binary.LittleEndian.Uint32(data[8:12])
	root := binary.LittleEndian.Uint32(data[12:16])

	if limits.MaxNodeCount > 0 && int(nodeCount) > limits.MaxNodeCount {
		return nil, 0, errors.InvalidEncoding("node count exceeds limit")
	}
	if nodeCount > 0 && root >= nodeCount {
		return nil, 0, errors.InvalidEncoding("root index out of range")
	}
	if nodeCount == 0 {
		return nil, 0, errors.InvalidEncoding("empty graph has no root")
	}

	nodes := make([]RawNode, 0, nodeCount)
	off := headerSize
	for i := uint32(0); i < nodeCount; i++ {
		if off+nodeHeaderSize > len(data) {
			return nil, 0, errors.BufferTooSmall(off+nodeHeaderSize, len(data))
		}
		kind := data[off]
		payloadLen := binary.LittleEndian.Uint32(data[off+4 : off+8])
		if limits.MaxPayloadSize > 0 && int(payloadLen) > limits.MaxPayloadSize {
			return nil, 0, errors.InvalidEncoding("payload exceeds max payload size")
		}
		off += nodeHeaderSize
		if off+int(payloadLen) > len(data) {
			return nil, 0, errors.BufferTooSmall(off+int(payloadLen), len(data))
		}
		payload := data[off : off+int(payloadLen)]
		off += int(payloadLen)

		if err := basicValidateNode(kind, payload, nodeCount, limits); err != nil {
			return nil, 0, err
		}
		nodes = append(nodes, RawNode{Kind: kind, Payload: payload})
	}
	if off != len(data) {
		return nil, 0, errors.InvalidEncoding("trailing bytes past last node")
	}
	return nodes, root, nil
}

func basicValidateNode(kind byte, payload []byte, nodeCount uint32, limits Limits) error {
	switch value.Kind(kind) {
	case value.KindBool, value.KindU8, value.KindS8:
		if len(payload) != 1 {
			return errors.InvalidEncoding("malformed scalar payload")
		}
	case value.KindU16, value.KindS16:
		if len(payload) != 2 {
			return errors.InvalidEncoding("malformed scalar payload")
		}
	case value.KindU32, value.KindS32, value.KindChar, value.KindF32:
		if len(payload) != 4 {
			return errors.InvalidEncoding("malformed scalar payload")
		}
		if value.Kind(kind) == value.KindChar {
			r := int32(binary.LittleEndian.Uint32(payload))
			if !validScalarValue(r) {
				return errors.InvalidEncoding("invalid unicode scalar value")
			}
		}
	case value.KindU64, value.KindS64, value.KindF64, value.KindFlags:
		if len(payload) != 8 {
			return errors.InvalidEncoding("malformed scalar payload")
		}
	case value.KindString:
		s, _, err := readString(payload, 0)
		if err != nil {
			return err
		}
		if !utf8.ValidString(s) {
			return errors.InvalidEncoding("invalid UTF-8 string")
		}
	case value.KindTuple:
		count, rest, err := readU32At(payload, 0)
		if err != nil {
			return err
		}
		if limits.MaxSeqLen > 0 && int(count) > limits.MaxSeqLen {
			return errors.InvalidEncoding("sequence exceeds max length")
		}
		if len(payload)-rest != int(count)*4 {
			return errors.InvalidEncoding("malformed tuple payload")
		}
		for i := uint32(0); i < count; i++ {
			child, _, err := readU32At(payload, rest+int(i)*4)
			if err != nil {
				return err
			}
			if child >= nodeCount {
				return errors.InvalidEncoding("child index out of range")
			}
		}
	case value.KindList, value.KindOption, value.KindResult, value.KindRecord, value.KindVariant:
		// variable-shape payloads: left to full/schema-directed decode.
	default:
		return errors.InvalidTag(kind)
	}
	return nil
}

func validScalarValue(r int32) bool {
	if r < 0 || r > 0x10FFFF {
		return false
	}
	if r >= 0xD800 && r <= 0xDFFF {
		return false
	}
	return true
}
