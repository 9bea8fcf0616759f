package cgrf

import (
	"encoding/binary"
	"math"

	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/value"
)

// NodeInfo is the kind-generic, pre-parsed shape of one graph node, used by
// both DecodeValue and the schema package's graph walk so neither has to
// duplicate payload parsing.
type NodeInfo struct {
	ElemType  value.ValueType // List/Option
	OkType    value.ValueType // Result
	ErrType   value.ValueType // Result
	TypeName  string          // Record/Variant
	CaseName  string          // Variant
	FieldNames []string       // Record
	Children  []uint32        // List/Tuple items, Record fields, Variant payload (positional)
	Child     uint32          // Option/Result payload, when Present
	Tag       uint32          // Variant tag / Result arm (0=ok,1=err)
	Present   bool            // Option/Result
	Kind      byte
}

// InspectNode parses n's payload according to its kind, returning the
// kind-generic shape used to walk the graph without fully decoding scalars.
func InspectNode(n RawNode) (NodeInfo, error) {
	info := NodeInfo{Kind: n.Kind}
	switch value.Kind(n.Kind) {
	case value.KindList:
		t, off, err := readTypeTag(n.Payload, 0)
		if err != nil {
			return info, err
		}
		info.ElemType = t
		count, n2, err := readU32At(n.Payload, off)
		if err != nil {
			return info, err
		}
		off += n2
		info.Children, err = readIndices(n.Payload, off, count)
		return info, err

	case value.KindOption:
		t, off, err := readTypeTag(n.Payload, 0)
		if err != nil {
			return info, err
		}
		info.ElemType = t
		if off >= len(n.Payload) {
			return info, errors.BufferTooSmall(off+1, len(n.Payload))
		}
		info.Present = n.Payload[off] != 0
		off++
		if info.Present {
			child, _, err := readU32At(n.Payload, off)
			if err != nil {
				return info, err
			}
			info.Child = child
		}
		return info, nil

	case value.KindResult:
		ok, off, err := readTypeTag(n.Payload, 0)
		if err != nil {
			return info, err
		}
		info.OkType = ok
		errT, n2, err := readTypeTag(n.Payload, off)
		if err != nil {
			return info, err
		}
		info.ErrType = errT
		off += n2
		tag, n3, err := readU32At(n.Payload, off)
		if err != nil {
			return info, err
		}
		info.Tag = tag
		off += n3
		if off >= len(n.Payload) {
			return info, errors.BufferTooSmall(off+1, len(n.Payload))
		}
		info.Present = n.Payload[off] != 0
		off++
		child, _, err := readU32At(n.Payload, off)
		if err != nil {
			return info, err
		}
		info.Child = child
		return info, nil

	case value.KindRecord:
		name, off, err := readString(n.Payload, 0)
		if err != nil {
			return info, err
		}
		info.TypeName = name
		count, n2, err := readU32At(n.Payload, off)
		if err != nil {
			return info, err
		}
		off += n2
		fields := make([]string, count)
		for i := uint32(0); i < count; i++ {
			fname, fn, err := readString(n.Payload, off)
			if err != nil {
				return info, err
			}
			fields[i] = fname
			off += fn
		}
		info.FieldNames = fields
		info.Children, err = readIndices(n.Payload, off, count)
		return info, err

	case value.KindVariant:
		name, off, err := readString(n.Payload, 0)
		if err != nil {
			return info, err
		}
		info.TypeName = name
		caseName, n2, err := readString(n.Payload, off)
		if err != nil {
			return info, err
		}
		info.CaseName = caseName
		off += n2
		tag, n3, err := readU32At(n.Payload, off)
		if err != nil {
			return info, err
		}
		info.Tag = tag
		off += n3
		count, n4, err := readU32At(n.Payload, off)
		if err != nil {
			return info, err
		}
		off += n4
		info.Children, err = readIndices(n.Payload, off, count)
		return info, err

	case value.KindTuple:
		count, off, err := readU32At(n.Payload, 0)
		if err != nil {
			return info, err
		}
		info.Children, err = readIndices(n.Payload, off, count)
		return info, err

	default:
		return info, nil
	}
}

func readIndices(data []byte, off int, count uint32) ([]uint32, error) {
	out := make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		v, n, err := readU32At(data, off)
		if err != nil {
			return nil, err
		}
		out[i] = v
		off += n
	}
	return out, nil
}

// DecodeValue reconstructs a value.Value rooted at nodes[root], memoizing
// already-decoded indices and rejecting cycles via a visiting set.
func DecodeValue(nodes []RawNode, root uint32) (value.Value, error) {
	d := &decoder{nodes: nodes, memo: map[uint32]*value.Value{}, visiting: map[uint32]bool{}}
	return d.decode(root)
}

type decoder struct {
	nodes    []RawNode
	memo     map[uint32]*value.Value
	visiting map[uint32]bool
}

func (d *decoder) decode(idx uint32) (value.Value, error) {
	if v, ok := d.memo[idx]; ok {
		return *v, nil
	}
	if int(idx) >= len(d.nodes) {
		return value.Value{}, errors.InvalidEncoding("child index out of range")
	}
	if d.visiting[idx] {
		return value.Value{}, errors.InvalidEncoding("cycle detected in graph buffer")
	}
	d.visiting[idx] = true
	defer delete(d.visiting, idx)

	n := d.nodes[idx]
	v, err := d.decodeNode(n)
	if err != nil {
		return value.Value{}, err
	}
	d.memo[idx] = &v
	return v, nil
}

func (d *decoder) decodeNode(n RawNode) (value.Value, error) {
	switch value.Kind(n.Kind) {
	case value.KindBool:
		if len(n.Payload) != 1 {
			return value.Value{}, errors.InvalidEncoding("malformed bool payload")
		}
		return value.Bool(n.Payload[0] != 0), nil
	case value.KindU8:
		return value.U8(n.Payload[0]), nil
	case value.KindS8:
		return value.S8(int8(n.Payload[0])), nil
	case value.KindU16:
		return value.U16(binary.LittleEndian.Uint16(n.Payload)), nil
	case value.KindS16:
		return value.S16(int16(binary.LittleEndian.Uint16(n.Payload))), nil
	case value.KindU32:
		return value.U32(binary.LittleEndian.Uint32(n.Payload)), nil
	case value.KindS32:
		return value.S32(int32(binary.LittleEndian.Uint32(n.Payload))), nil
	case value.KindChar:
		return value.Char(rune(int32(binary.LittleEndian.Uint32(n.Payload)))), nil
	case value.KindU64:
		return value.U64(binary.LittleEndian.Uint64(n.Payload)), nil
	case value.KindS64:
		return value.S64(int64(binary.LittleEndian.Uint64(n.Payload))), nil
	case value.KindFlags:
		return value.Flags(binary.LittleEndian.Uint64(n.Payload)), nil
	case value.KindF32:
		return value.F32(math.Float32frombits(binary.LittleEndian.Uint32(n.Payload))), nil
	case value.KindF64:
		return value.F64(math.Float64frombits(binary.LittleEndian.Uint64(n.Payload))), nil
	case value.KindString:
		s, _, err := readString(n.Payload, 0)
		return value.Str(s), err

	case value.KindList:
		info, err := InspectNode(n)
		if err != nil {
			return value.Value{}, err
		}
		items := make([]value.Value, len(info.Children))
		for i, c := range info.Children {
			items[i], err = d.decode(c)
			if err != nil {
				return value.Value{}, err
			}
		}
		return value.List(info.ElemType, items), nil

	case value.KindOption:
		info, err := InspectNode(n)
		if err != nil {
			return value.Value{}, err
		}
		if !info.Present {
			return value.None(info.ElemType), nil
		}
		inner, err := d.decode(info.Child)
		if err != nil {
			return value.Value{}, err
		}
		return value.Some(info.ElemType, inner), nil

	case value.KindResult:
		info, err := InspectNode(n)
		if err != nil {
			return value.Value{}, err
		}
		if info.Tag == 0 {
			if !info.Present {
				return value.ResultOkUnit(info.OkType, info.ErrType), nil
			}
			inner, err := d.decode(info.Child)
			if err != nil {
				return value.Value{}, err
			}
			return value.ResultOk(info.OkType, info.ErrType, inner), nil
		}
		if info.Tag != 1 {
			return value.Value{}, errors.InvalidEncoding("result tag must be 0 or 1")
		}
		if !info.Present {
			return value.ResultErrUnit(info.OkType, info.ErrType), nil
		}
		inner, err := d.decode(info.Child)
		if err != nil {
			return value.Value{}, err
		}
		return value.ResultErr(info.OkType, info.ErrType, inner), nil

	case value.KindRecord:
		info, err := InspectNode(n)
		if err != nil {
			return value.Value{}, err
		}
		fields := make([]value.Field, len(info.Children))
		for i, c := range info.Children {
			fv, err := d.decode(c)
			if err != nil {
				return value.Value{}, err
			}
			fields[i] = value.Field{Name: info.FieldNames[i], Value: fv}
		}
		return value.Record(info.TypeName, fields...), nil

	case value.KindVariant:
		info, err := InspectNode(n)
		if err != nil {
			return value.Value{}, err
		}
		payload := make([]value.Value, len(info.Children))
		for i, c := range info.Children {
			payload[i], err = d.decode(c)
			if err != nil {
				return value.Value{}, err
			}
		}
		return value.Variant(info.TypeName, info.CaseName, info.Tag, payload...), nil

	case value.KindTuple:
		info, err := InspectNode(n)
		if err != nil {
			return value.Value{}, err
		}
		items := make([]value.Value, len(info.Children))
		for i, c := range info.Children {
			items[i], err = d.decode(c)
			if err != nil {
				return value.Value{}, err
			}
		}
		return value.Tuple(items...), nil

	default:
		return value.Value{}, errors.InvalidTag(n.Kind)
	}
}
