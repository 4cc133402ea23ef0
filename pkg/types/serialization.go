package types

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// walkFields iterates the top-level fields of a protobuf wire message.
// Varint fields are delivered through val, length-delimited fields through
// raw. Fixed32 and fixed64 fields are skipped; group and unknown wire types
// fail with ErrDeserialization.
func walkFields(b []byte, fn func(num protowire.Number, val uint64, raw []byte)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ErrDeserialization
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return ErrDeserialization
			}
			fn(num, v, nil)
			b = b[n:]
		case protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return ErrDeserialization
			}
			fn(num, 0, raw)
			b = b[n:]
		case protowire.Fixed32Type:
			_, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return ErrDeserialization
			}
			b = b[n:]
		case protowire.Fixed64Type:
			_, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return ErrDeserialization
			}
			b = b[n:]
		default:
			return ErrDeserialization
		}
	}
	return nil
}

func appendUint64(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendPackedUint64(b []byte, num protowire.Number, vs []uint64) []byte {
	if len(vs) == 0 {
		return b
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, v)
	}
	return appendBytes(b, num, packed)
}

func consumePackedUint64(raw []byte) ([]uint64, error) {
	var out []uint64
	for len(raw) > 0 {
		v, n := protowire.ConsumeVarint(raw)
		if n < 0 {
			return nil, ErrDeserialization
		}
		out = append(out, v)
		raw = raw[n:]
	}
	return out, nil
}
