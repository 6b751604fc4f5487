// Package catalog materializes PostgreSQL-compatible virtual tables
// (pg_catalog / information_schema) from the live schema, per spec §4.3.
// Mirror tables are rebuilt on demand from the current schema.Database
// state and never persisted as ordinary mutable tables.
package catalog

import (
	"fmt"
	"strings"

	"github.com/martinsk/mskql/internal/schema"
	"github.com/martinsk/mskql/internal/value"
)

// mirrorNames lists every catalog table this engine materializes,
// matching spec §4.3's minimum set.
var mirrorNames = []string{
	"pg_namespace", "pg_type", "pg_class", "pg_attribute", "pg_index",
	"pg_attrdef", "pg_constraint", "pg_am", "pg_database", "pg_roles",
	"pg_settings", "pg_policy", "pg_collation",
	"information_schema_tables", "information_schema_columns",
}

// ResolveName maps a possibly schema-qualified name to its storage table
// name per §4.3: pg_catalog.X -> X, information_schema.X ->
// information_schema_X, public.X -> X.
func ResolveName(qualified string) string {
	if i := strings.IndexByte(qualified, '.'); i >= 0 {
		schemaPart, rest := qualified[:i], qualified[i+1:]
		switch schemaPart {
		case "pg_catalog", "public":
			return rest
		case "information_schema":
			return "information_schema_" + rest
		}
		return rest
	}
	return qualified
}

// IsMirrorName reports whether name (unqualified, storage form) is one of
// the catalog tables this engine maintains.
func IsMirrorName(name string) bool {
	for _, n := range mirrorNames {
		if n == name {
			return true
		}
	}
	return false
}

// synthOID deterministically derives a PostgreSQL object id from a kind
// tag and position, so repeated rebuilds of the same schema state produce
// identical OIDs (spec §4.3).
func synthOID(kind byte, pos int) int32 {
	return int32(kind)<<24 | int32(pos+1)
}

const (
	kindNamespace byte = 1
	kindClass     byte = 2
	kindType      byte = 3
	kindIndex     byte = 4
	kindConstr    byte = 5
)

const publicNamespaceOID = int32(2200) // matches PostgreSQL's well-known public schema oid

// Rebuild drops any existing mirror tables and reconstructs them from
// db's current user tables, in dependency order: namespace -> type ->
// class -> attribute -> dependent metadata. Caller must hold
// db.WriteLock for the duration (DDL-equivalent operation).
func Rebuild(db *schema.Database) {
	for _, n := range mirrorNames {
		db.DropTable(n)
	}

	userTables := db.Tables()

	buildNamespace(db)
	buildType(db)
	buildClass(db, userTables)
	buildAttribute(db, userTables)
	buildIndex(db, userTables)
	buildAttrdef(db, userTables)
	buildConstraint(db, userTables)
	buildAM(db)
	buildDatabaseTable(db)
	buildRoles(db)
	buildSettings(db)
	buildPolicy(db)
	buildCollation(db)
	buildInformationSchemaTables(db, userTables)
	buildInformationSchemaColumns(db, userTables)
}

func mirrorCols(names []string, types []value.Type) []schema.Column {
	cols := make([]schema.Column, len(names))
	for i, n := range names {
		cols[i] = schema.Column{Name: n, Type: types[i]}
	}
	return cols
}

func buildNamespace(db *schema.Database) {
	t := db.CreateTable("pg_namespace", mirrorCols(
		[]string{"oid", "nspname"},
		[]value.Type{value.Int, value.Text},
	), true)
	t.AppendRow([]value.Value{value.NewInt(publicNamespaceOID), value.NewText("public")})
	t.AppendRow([]value.Value{value.NewInt(11), value.NewText("pg_catalog")})
	t.AppendRow([]value.Value{value.NewInt(13000), value.NewText("information_schema")})
}

func buildType(db *schema.Database) {
	t := db.CreateTable("pg_type", mirrorCols(
		[]string{"oid", "typname", "typnamespace", "typlen"},
		[]value.Type{value.Int, value.Text, value.Int, value.SmallInt},
	), true)
	for typ := value.SmallInt; typ <= value.Numeric; typ++ {
		info := value.Info(typ)
		t.AppendRow([]value.Value{
			value.NewInt(int32(info.OID)),
			value.NewText(info.TypName),
			value.NewInt(11),
			value.NewSmallInt(info.TypLen),
		})
	}
	for i, e := range db.Enums() {
		t.AppendRow([]value.Value{
			value.NewInt(20000 + int32(i)),
			value.NewText(e.Name),
			value.NewInt(publicNamespaceOID),
			value.NewSmallInt(4),
		})
	}
}

func buildClass(db *schema.Database, tables []*schema.Table) {
	t := db.CreateTable("pg_class", mirrorCols(
		[]string{"oid", "relname", "relnamespace", "relkind", "reltuples"},
		[]value.Type{value.Int, value.Text, value.Int, value.Text, value.Float},
	), true)
	for i, ut := range tables {
		t.AppendRow([]value.Value{
			value.NewInt(synthOID(kindClass, i)),
			value.NewText(ut.Name),
			value.NewInt(publicNamespaceOID),
			value.NewText("r"),
			value.NewFloat(float64(ut.RowCount())),
		})
	}
}

func classOID(tables []*schema.Table, name string) (int32, bool) {
	for i, t := range tables {
		if t.Name == name {
			return synthOID(kindClass, i), true
		}
	}
	return 0, false
}

func buildAttribute(db *schema.Database, tables []*schema.Table) {
	t := db.CreateTable("pg_attribute", mirrorCols(
		[]string{"attrelid", "attname", "atttypid", "attnum", "attnotnull"},
		[]value.Type{value.Int, value.Text, value.Int, value.SmallInt, value.Bool},
	), true)
	for i, ut := range tables {
		relid := synthOID(kindClass, i)
		for ci, c := range ut.Columns {
			t.AppendRow([]value.Value{
				value.NewInt(relid),
				value.NewText(c.Name),
				value.NewInt(int32(value.OIDFor(c.Type))),
				value.NewSmallInt(int16(ci + 1)),
				value.NewBool(c.NotNull),
			})
		}
	}
}

func buildIndex(db *schema.Database, tables []*schema.Table) {
	t := db.CreateTable("pg_index", mirrorCols(
		[]string{"indexrelid", "indrelid", "indisunique", "indisprimary"},
		[]value.Type{value.Int, value.Int, value.Bool, value.Bool},
	), true)
	pos := 0
	for i, ut := range tables {
		relid := synthOID(kindClass, i)
		for _, c := range ut.Columns {
			if c.Unique || c.PrimaryKey {
				t.AppendRow([]value.Value{
					value.NewInt(synthOID(kindIndex, pos)),
					value.NewInt(relid),
					value.NewBool(c.Unique || c.PrimaryKey),
					value.NewBool(c.PrimaryKey),
				})
				pos++
			}
		}
	}
}

func buildAttrdef(db *schema.Database, tables []*schema.Table) {
	t := db.CreateTable("pg_attrdef", mirrorCols(
		[]string{"adrelid", "adnum", "adsrc"},
		[]value.Type{value.Int, value.SmallInt, value.Text},
	), true)
	for i, ut := range tables {
		relid := synthOID(kindClass, i)
		for ci, c := range ut.Columns {
			if c.Default != "" {
				t.AppendRow([]value.Value{
					value.NewInt(relid),
					value.NewSmallInt(int16(ci + 1)),
					value.NewText(c.Default),
				})
			}
		}
	}
}

func buildConstraint(db *schema.Database, tables []*schema.Table) {
	t := db.CreateTable("pg_constraint", mirrorCols(
		[]string{"oid", "conname", "contype", "conrelid", "confrelid"},
		[]value.Type{value.Int, value.Text, value.Text, value.Int, value.Int},
	), true)
	pos := 0
	for i, ut := range tables {
		relid := synthOID(kindClass, i)
		for _, c := range ut.Columns {
			switch {
			case c.PrimaryKey:
				t.AppendRow([]value.Value{
					value.NewInt(synthOID(kindConstr, pos)),
					value.NewText(fmt.Sprintf("%s_%s_pkey", ut.Name, c.Name)),
					value.NewText("p"),
					value.NewInt(relid),
					value.NewInt(0),
				})
				pos++
			case c.FK != nil:
				confrelid := int32(0)
				if reft, ok := classOID(tables, tableNameByID(tables, c.FK.RefTable)); ok {
					confrelid = reft
				}
				t.AppendRow([]value.Value{
					value.NewInt(synthOID(kindConstr, pos)),
					value.NewText(fmt.Sprintf("%s_%s_fkey", ut.Name, c.Name)),
					value.NewText("f"),
					value.NewInt(relid),
					value.NewInt(confrelid),
				})
				pos++
			case c.Check != "":
				t.AppendRow([]value.Value{
					value.NewInt(synthOID(kindConstr, pos)),
					value.NewText(fmt.Sprintf("%s_%s_check", ut.Name, c.Name)),
					value.NewText("c"),
					value.NewInt(relid),
					value.NewInt(0),
				})
				pos++
			}
		}
	}
}

func tableNameByID(tables []*schema.Table, id schema.TableID) string {
	for _, t := range tables {
		if t.ID == id {
			return t.Name
		}
	}
	return ""
}

func buildAM(db *schema.Database) {
	t := db.CreateTable("pg_am", mirrorCols(
		[]string{"oid", "amname"},
		[]value.Type{value.Int, value.Text},
	), true)
	t.AppendRow([]value.Value{value.NewInt(2), value.NewText("heap")})
	t.AppendRow([]value.Value{value.NewInt(403), value.NewText("btree")})
	t.AppendRow([]value.Value{value.NewInt(405), value.NewText("hash")})
}

func buildDatabaseTable(db *schema.Database) {
	t := db.CreateTable("pg_database", mirrorCols(
		[]string{"oid", "datname"},
		[]value.Type{value.Int, value.Text},
	), true)
	t.AppendRow([]value.Value{value.NewInt(1), value.NewText(db.Name)})
}

func buildRoles(db *schema.Database) {
	t := db.CreateTable("pg_roles", mirrorCols(
		[]string{"oid", "rolname", "rolsuper"},
		[]value.Type{value.Int, value.Text, value.Bool},
	), true)
	t.AppendRow([]value.Value{value.NewInt(10), value.NewText("mskql"), value.NewBool(true)})
}

func buildSettings(db *schema.Database) {
	t := db.CreateTable("pg_settings", mirrorCols(
		[]string{"name", "setting"},
		[]value.Type{value.Text, value.Text},
	), true)
	for _, kv := range [][2]string{
		{"server_version", "14.0"},
		{"server_encoding", "UTF8"},
		{"client_encoding", "UTF8"},
		{"DateStyle", "ISO, MDY"},
		{"IntervalStyle", "postgres"},
		{"TimeZone", "UTC"},
		{"integer_datetimes", "on"},
		{"standard_conforming_strings", "on"},
	} {
		t.AppendRow([]value.Value{value.NewText(kv[0]), value.NewText(kv[1])})
	}
}

func buildPolicy(db *schema.Database) {
	db.CreateTable("pg_policy", mirrorCols(
		[]string{"oid", "polname", "polrelid"},
		[]value.Type{value.Int, value.Text, value.Int},
	), true)
}

func buildCollation(db *schema.Database) {
	t := db.CreateTable("pg_collation", mirrorCols(
		[]string{"oid", "collname"},
		[]value.Type{value.Int, value.Text},
	), true)
	t.AppendRow([]value.Value{value.NewInt(100), value.NewText("default")})
	t.AppendRow([]value.Value{value.NewInt(950), value.NewText("C")})
}

func buildInformationSchemaTables(db *schema.Database, tables []*schema.Table) {
	t := db.CreateTable("information_schema_tables", mirrorCols(
		[]string{"table_catalog", "table_schema", "table_name", "table_type"},
		[]value.Type{value.Text, value.Text, value.Text, value.Text},
	), true)
	for _, ut := range tables {
		t.AppendRow([]value.Value{
			value.NewText(db.Name),
			value.NewText("public"),
			value.NewText(ut.Name),
			value.NewText("BASE TABLE"),
		})
	}
}

func buildInformationSchemaColumns(db *schema.Database, tables []*schema.Table) {
	t := db.CreateTable("information_schema_columns", mirrorCols(
		[]string{"table_catalog", "table_schema", "table_name", "column_name", "ordinal_position", "data_type", "is_nullable"},
		[]value.Type{value.Text, value.Text, value.Text, value.Text, value.Int, value.Text, value.Text},
	), true)
	for _, ut := range tables {
		for ci, c := range ut.Columns {
			nullable := "YES"
			if c.NotNull {
				nullable = "NO"
			}
			t.AppendRow([]value.Value{
				value.NewText(db.Name),
				value.NewText("public"),
				value.NewText(ut.Name),
				value.NewText(c.Name),
				value.NewInt(int32(ci + 1)),
				value.NewText(value.Info(c.Type).PGName),
				value.NewText(nullable),
			})
		}
	}
}
