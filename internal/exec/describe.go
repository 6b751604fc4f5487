package exec

import (
	"github.com/martinsk/mskql/internal/ast"
	"github.com/martinsk/mskql/internal/catalog"
	"github.com/martinsk/mskql/internal/errs"
)

// DescribeSelect computes the RowDescription a SELECT would produce
// without scanning any rows, for the wire layer's Describe handling
// (spec §4.6 Extended Query sub-protocol). It only needs column
// names/types from the schema, which projectColumns derives without
// touching row values except for `*` expansion.
func (eng *Engine) DescribeSelect(sel *ast.Select) ([]ResultColumn, error) {
	var scopes []scope
	if sel.From != "" {
		t, ok := eng.DB.TableByName(catalog.ResolveName(sel.From))
		if !ok {
			return nil, errs.New(errs.KindUndefinedObject, "relation %q does not exist", sel.From)
		}
		scopes = append(scopes, tableScope(t, sel.FromAlias))
	}
	for _, jc := range sel.Joins {
		rt, ok := eng.DB.TableByName(catalog.ResolveName(jc.Table))
		if !ok {
			return nil, errs.New(errs.KindUndefinedObject, "relation %q does not exist", jc.Table)
		}
		scopes = append(scopes, tableScope(rt, jc.Alias))
	}
	sample := []materialRow{{scopes: scopes}}
	return projectColumns(sample, sel.Items)
}
