// Package value implements the engine's scalar value representation: the
// tagged union described in spec §3, the fixed PostgreSQL OID mapping for
// each type, and canonical date/time/interval/UUID parsing, formatting,
// and arithmetic ported from the original C engine's datetime.c/uuid.h.
package value

// Type is the tag of the scalar value union.
type Type uint8

const (
	SmallInt Type = iota
	Int
	BigInt
	Float
	Text
	Bool
	Date
	Time
	Timestamp
	TimestampTZ
	Interval
	UUID
	Enum
	Numeric
)

// TypeInfo is the single source of truth mapping a column type to its
// PostgreSQL OID, wire typname, information_schema display name, and byte
// length — mirrors the original engine's pg_type_table in column.h.
type TypeInfo struct {
	OID     uint32
	TypName string
	PGName  string
	TypLen  int16 // -1 == variable length
}

var typeTable = [...]TypeInfo{
	SmallInt:    {21, "int2", "smallint", 2},
	Int:         {23, "int4", "integer", 4},
	BigInt:      {20, "int8", "bigint", 8},
	Float:       {701, "float8", "double precision", 8},
	Text:        {25, "text", "text", -1},
	Bool:        {16, "bool", "boolean", 1},
	Date:        {1082, "date", "date", 4},
	Time:        {1083, "time", "time without time zone", 8},
	Timestamp:   {1114, "timestamp", "timestamp without time zone", 8},
	TimestampTZ: {1184, "timestamptz", "timestamp with time zone", 8},
	Interval:    {1186, "interval", "interval", 16},
	UUID:        {2950, "uuid", "uuid", 16},
	Enum:        {25, "text", "USER-DEFINED", 4},
	Numeric:     {1700, "numeric", "numeric", -1},
}

// Info returns the PostgreSQL type metadata for t.
func Info(t Type) TypeInfo { return typeTable[t] }

// OIDFor returns the PostgreSQL type OID for t.
func OIDFor(t Type) uint32 { return typeTable[t].OID }

// TypeByOID reverse-looks-up a Type from a wire OID. ok is false for OIDs
// the engine doesn't support.
func TypeByOID(oid uint32) (Type, bool) {
	for i, info := range typeTable {
		if info.OID == oid {
			// Enum reports text's OID (25), so it is skipped here and
			// OID 25 maps back to Text.
			t := Type(i)
			if t == Enum {
				continue
			}
			return t, true
		}
	}
	return 0, false
}

func (t Type) String() string { return typeTable[t].PGName }
