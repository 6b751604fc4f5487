package wire

import (
	"strconv"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/martinsk/mskql/internal/exec"
	"github.com/martinsk/mskql/internal/value"
)

// rowDescriptionFor builds a RowDescription from result columns, all in
// text format (binary output is not required for first conformance per
// spec §6).
func rowDescriptionFor(cols []exec.ResultColumn) *pgproto3.RowDescription {
	fields := make([]pgproto3.FieldDescription, len(cols))
	for i, c := range cols {
		info := value.Info(c.Type)
		fields[i] = pgproto3.FieldDescription{
			Name:                 []byte(c.Name),
			TableOID:             0,
			TableAttributeNumber: 0,
			DataTypeOID:          info.OID,
			DataTypeSize:         info.TypLen,
			TypeModifier:         -1,
			Format:               0,
		}
	}
	return &pgproto3.RowDescription{Fields: fields}
}

// dataRowFor renders one result row in text format.
func dataRowFor(row []value.Value) *pgproto3.DataRow {
	vals := make([][]byte, len(row))
	for i, v := range row {
		if v.IsNull() {
			vals[i] = nil
			continue
		}
		vals[i] = []byte(textOfValue(v))
	}
	return &pgproto3.DataRow{Values: vals}
}

// textOfValue renders v the way PostgreSQL's text output format does for
// each type.
func textOfValue(v value.Value) string {
	switch v.Type {
	case value.SmallInt, value.Int, value.BigInt, value.Enum:
		return strconv.FormatInt(v.Int64(), 10)
	case value.Float, value.Numeric:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case value.Text:
		return v.Text()
	case value.Bool:
		if v.Bool() {
			return "t"
		}
		return "f"
	case value.Date:
		return value.DateToStr(v.Int32())
	case value.Time:
		return value.TimeToStr(v.Int64())
	case value.Timestamp:
		return value.TimestampToStr(v.Int64())
	case value.TimestampTZ:
		return value.TimestampTZToStr(v.Int64())
	case value.Interval:
		return value.IntervalToStr(v.Interval())
	case value.UUID:
		return v.UUID().String()
	default:
		return ""
	}
}
