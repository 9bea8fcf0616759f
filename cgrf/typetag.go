package cgrf

import (
	"encoding/binary"

	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/value"
)

// writeTypeTag serializes the inline type witness carried by list, option,
// and result nodes. Primitive kinds are a single byte; compounds recurse.
func writeTypeTag(t value.ValueType) []byte {
	switch t.Kind {
	case value.KindList:
		return append([]byte{byte(value.KindList)}, writeTypeTag(*t.Elem)...)
	case value.KindOption:
		return append([]byte{byte(value.KindOption)}, writeTypeTag(*t.Elem)...)
	case value.KindResult:
		buf := []byte{byte(value.KindResult)}
		buf = append(buf, writeTypeTag(*t.Ok)...)
		buf = append(buf, writeTypeTag(*t.Err)...)
		return buf
	case value.KindRecord, value.KindVariant:
		return append([]byte{byte(t.Kind)}, encodeString(t.Name)...)
	case value.KindTuple:
		buf := []byte{byte(value.KindTuple)}
		buf = append(buf, u32le(uint32(len(t.Elems)))...)
		for _, e := range t.Elems {
			buf = append(buf, writeTypeTag(e)...)
		}
		return buf
	default:
		return []byte{byte(t.Kind)}
	}
}

// readTypeTag is the inverse of writeTypeTag; it returns the parsed type
// and the number of bytes consumed from data[off:].
func readTypeTag(data []byte, off int) (value.ValueType, int, error) {
	if off >= len(data) {
		return value.ValueType{}, 0, errors.BufferTooSmall(off+1, len(data))
	}
	kind := value.Kind(data[off])
	switch kind {
	case value.KindList, value.KindOption:
		elem, n, err := readTypeTag(data, off+1)
		if err != nil {
			return value.ValueType{}, 0, err
		}
		return value.ValueType{Kind: kind, Elem: &elem}, 1 + n, nil
	case value.KindResult:
		ok, n1, err := readTypeTag(data, off+1)
		if err != nil {
			return value.ValueType{}, 0, err
		}
		errT, n2, err := readTypeTag(data, off+1+n1)
		if err != nil {
			return value.ValueType{}, 0, err
		}
		return value.ValueType{Kind: kind, Ok: &ok, Err: &errT}, 1 + n1 + n2, nil
	case value.KindRecord, value.KindVariant:
		name, n, err := readString(data, off+1)
		if err != nil {
			return value.ValueType{}, 0, err
		}
		return value.ValueType{Kind: kind, Name: name}, 1 + n, nil
	case value.KindTuple:
		count, n, err := readU32At(data, off+1)
		if err != nil {
			return value.ValueType{}, 0, err
		}
		pos := off + 1 + n
		elems := make([]value.ValueType, count)
		for i := uint32(0); i < count; i++ {
			e, en, err := readTypeTag(data, pos)
			if err != nil {
				return value.ValueType{}, 0, err
			}
			elems[i] = e
			pos += en
		}
		return value.ValueType{Kind: kind, Elems: elems}, pos - off, nil
	default:
		if !kind.IsPrimitive() {
			return value.ValueType{}, 0, errors.InvalidTag(byte(kind))
		}
		return value.ValueType{Kind: kind}, 1, nil
	}
}

func readU32At(data []byte, off int) (uint32, int, error) {
	if off+4 > len(data) {
		return 0, 0, errors.BufferTooSmall(off+4, len(data))
	}
	return binary.LittleEndian.Uint32(data[off : off+4]), 4, nil
}

func readString(data []byte, off int) (string, int, error) {
	n, consumed, err := readU32At(data, off)
	if err != nil {
		return "", 0, err
	}
	start := off + consumed
	if start+int(n) > len(data) {
		return "", 0, errors.BufferTooSmall(start+int(n), len(data))
	}
	return string(data[start : start+int(n)]), consumed + int(n), nil
}
