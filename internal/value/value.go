package value

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// Value is the engine's tagged scalar union (spec §3). A flat struct
// rather than an interface{} payload keeps row-block columns allocation
// free during scan/filter/project.
type Value struct {
	Type Type
	Null bool

	i64 int64   // SmallInt/Int/BigInt/Date/Time/Timestamp/TimestampTZ/Enum ordinal
	f64 float64 // Float/Numeric
	str string  // Text
	iv  Ivl     // Interval
	u   uuid.UUID
}

func null(t Type) Value { return Value{Type: t, Null: true} }

// Null constructs a NULL value of the given type.
func Null(t Type) Value { return null(t) }

func NewSmallInt(v int16) Value  { return Value{Type: SmallInt, i64: int64(v)} }
func NewInt(v int32) Value       { return Value{Type: Int, i64: int64(v)} }
func NewBigInt(v int64) Value    { return Value{Type: BigInt, i64: v} }
func NewFloat(v float64) Value   { return Value{Type: Float, f64: v} }
func NewNumeric(v float64) Value { return Value{Type: Numeric, f64: v} }
func NewText(v string) Value     { return Value{Type: Text, str: v} }
func NewBool(v bool) Value {
	var i int64
	if v {
		i = 1
	}
	return Value{Type: Bool, i64: i}
}
func NewDate(days int32) Value          { return Value{Type: Date, i64: int64(days)} }
func NewTime(usec int64) Value          { return Value{Type: Time, i64: usec} }
func NewTimestamp(usec int64) Value     { return Value{Type: Timestamp, i64: usec} }
func NewTimestampTZ(usec int64) Value   { return Value{Type: TimestampTZ, i64: usec} }
func NewInterval(iv Ivl) Value          { return Value{Type: Interval, iv: iv} }
func NewUUID(u uuid.UUID) Value         { return Value{Type: UUID, u: u} }
func NewEnum(ordinal int32) Value       { return Value{Type: Enum, i64: int64(ordinal)} }

func (v Value) Int64() int64    { return v.i64 }
func (v Value) Int32() int32    { return int32(v.i64) }
func (v Value) Int16() int16    { return int16(v.i64) }
func (v Value) Float64() float64 { return v.f64 }
func (v Value) Text() string    { return v.str }
func (v Value) Bool() bool      { return v.i64 != 0 }
func (v Value) Interval() Ivl   { return v.iv }
func (v Value) UUID() uuid.UUID { return v.u }
func (v Value) EnumOrdinal() int32 { return int32(v.i64) }

// IsNull reports whether this value carries SQL NULL.
func (v Value) IsNull() bool { return v.Null }

// CanonicalBytes returns the byte encoding used for both hashing and
// equality, matching the original engine's per-type encoding in block.h:
// integers by native byte order, doubles by bit pattern, strings as raw
// bytes with no length prefix, UUIDs as their 16 bytes, intervals as the
// full (months, days, micros) triple.
func (v Value) CanonicalBytes() []byte {
	var buf bytes.Buffer
	switch v.Type {
	case SmallInt:
		binary.Write(&buf, binary.LittleEndian, int32(v.i64))
	case Int, Bool, Date, Enum:
		binary.Write(&buf, binary.LittleEndian, int32(v.i64))
	case BigInt, Time, Timestamp, TimestampTZ:
		binary.Write(&buf, binary.LittleEndian, v.i64)
	case Float, Numeric:
		binary.Write(&buf, binary.LittleEndian, math.Float64bits(v.f64))
	case Text:
		buf.WriteString(v.str)
	case UUID:
		b, _ := v.u.MarshalBinary()
		buf.Write(b)
	case Interval:
		binary.Write(&buf, binary.LittleEndian, v.iv.Months)
		binary.Write(&buf, binary.LittleEndian, v.iv.Days)
		binary.Write(&buf, binary.LittleEndian, v.iv.Micros)
	}
	return buf.Bytes()
}

const (
	fnvOffset32 uint32 = 2166136261
	fnvPrime32  uint32 = 16777619
)

// Hash computes the FNV-1a hash of the canonical byte encoding. NULL
// always hashes to 0 and is never equal to another NULL except via
// null-safe equality handled one level up by the executor.
func (v Value) Hash() uint32 {
	if v.Null {
		return 0
	}
	h := fnvOffset32
	for _, b := range v.CanonicalBytes() {
		h ^= uint32(b)
		h *= fnvPrime32
	}
	return h
}

// Equal mirrors block_cell_eq: two cells compare equal iff both are
// non-NULL and their canonical representations match exactly.
func (a Value) Equal(b Value) bool {
	if a.Null || b.Null {
		return false
	}
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case Text:
		return a.str == b.str
	case UUID:
		return a.u == b.u
	case Interval:
		return a.iv.Equal(b.iv)
	case Float, Numeric:
		return a.f64 == b.f64
	default:
		return a.i64 == b.i64
	}
}

// NullSafeEqual implements `IS NOT DISTINCT FROM`: two NULLs compare
// equal, a NULL and a non-NULL never do.
func (a Value) NullSafeEqual(b Value) bool {
	if a.Null && b.Null {
		return true
	}
	if a.Null != b.Null {
		return false
	}
	return a.Equal(b)
}

// Compare returns -1/0/1 ordering a value against another of the same
// type. NULL ordering (NULLS FIRST/LAST) is applied by the caller, not
// here; Compare does not look at the Null flag, so callers must check
// IsNull first.
func (a Value) Compare(b Value) int {
	switch a.Type {
	case Text:
		switch {
		case a.str < b.str:
			return -1
		case a.str > b.str:
			return 1
		default:
			return 0
		}
	case UUID:
		return bytes.Compare(a.u[:], b.u[:])
	case Interval:
		if a.iv.Months != b.iv.Months {
			return cmpInt64(int64(a.iv.Months), int64(b.iv.Months))
		}
		if a.iv.Days != b.iv.Days {
			return cmpInt64(int64(a.iv.Days), int64(b.iv.Days))
		}
		return cmpInt64(a.iv.Micros, b.iv.Micros)
	case Float, Numeric:
		switch {
		case a.f64 < b.f64:
			return -1
		case a.f64 > b.f64:
			return 1
		default:
			return 0
		}
	default:
		return cmpInt64(a.i64, b.i64)
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
