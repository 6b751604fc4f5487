// Package exec implements the statement executor (spec §4.4): Scan,
// Project, Join, Group, Sort, Distinct, Insert, Update, Delete, driven
// off the parsed internal/ast tree and operating over internal/block row
// blocks and internal/schema tables.
package exec

import (
	"github.com/martinsk/mskql/internal/schema"
	"github.com/martinsk/mskql/internal/txn"
	"github.com/martinsk/mskql/internal/value"
)

// ResultKind tells the wire layer which CommandComplete tag shape to use.
type ResultKind uint8

const (
	KindRows    ResultKind = iota // SELECT-shaped: RowDescription + DataRows
	KindCommand                   // DDL/DML: a tag like "INSERT 0 n"
	KindEmpty                     // zero-length query text
)

// ResultColumn describes one output column for RowDescription.
type ResultColumn struct {
	Name string
	Type value.Type
}

// Result is what one statement execution produces for the wire session.
type Result struct {
	Kind    ResultKind
	Columns []ResultColumn
	Rows    [][]value.Value
	Tag     string // e.g. "SELECT 3", "INSERT 0 1", "CREATE TABLE"
}

// Engine binds a schema.Database to the executor operations. One Engine
// is shared by every session; per-statement state (the transaction log)
// is supplied by the caller's txn.Manager.
type Engine struct {
	DB *schema.Database
}

func New(db *schema.Database) *Engine { return &Engine{DB: db} }

// execContext threads the acting session's transaction log and bound
// parameters through one statement's execution.
type execContext struct {
	tx     *txn.Manager
	params []value.Value
}
