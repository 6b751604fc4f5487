package parser

import (
	"strconv"
	"strings"

	"github.com/martinsk/mskql/internal/ast"
)

type parser struct {
	toks []token
	pos  int
}

// ParseStatements splits sql on top-level `;` and parses each statement,
// matching the Simple Query sub-protocol's "single text containing
// multiple statements separated by ;" contract.
func ParseStatements(sql string) ([]ast.Statement, error) {
	chunks := splitStatements(sql)
	var out []ast.Statement
	for _, c := range chunks {
		if strings.TrimSpace(c) == "" {
			continue
		}
		st, err := ParseOne(c)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func splitStatements(sql string) []string {
	var chunks []string
	var cur strings.Builder
	inStr := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if c == '\'' {
			inStr = !inStr
		}
		if c == ';' && !inStr {
			chunks = append(chunks, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	if strings.TrimSpace(cur.String()) != "" {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// ParseOne parses a single SQL statement (no trailing `;`).
func ParseOne(sql string) (ast.Statement, error) {
	toks, err := tokenize(sql)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parseStatement()
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parser) kw(s string) bool {
	t := p.cur()
	return t.kind == tokIdent && strings.EqualFold(t.text, s)
}

func (p *parser) expectKw(s string) error {
	if !p.kw(s) {
		return syntaxErrf(p.cur().pos, "expected %q, got %q", s, p.cur().text)
	}
	p.advance()
	return nil
}

func (p *parser) punct(s string) bool {
	t := p.cur()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) expectPunct(s string) error {
	if !p.punct(s) {
		return syntaxErrf(p.cur().pos, "expected %q, got %q", s, p.cur().text)
	}
	p.advance()
	return nil
}

func (p *parser) ident() (string, error) {
	t := p.cur()
	if t.kind != tokIdent {
		return "", syntaxErrf(t.pos, "expected identifier, got %q", t.text)
	}
	p.advance()
	return t.text, nil
}

func (p *parser) parseStatement() (ast.Statement, error) {
	switch {
	case p.kw("create"):
		return p.parseCreate()
	case p.kw("drop"):
		return p.parseDrop()
	case p.kw("insert"):
		return p.parseInsert()
	case p.kw("update"):
		return p.parseUpdate()
	case p.kw("delete"):
		return p.parseDelete()
	case p.kw("select"):
		return p.parseSelect()
	case p.kw("begin"), p.kw("start"):
		p.advance()
		for !p.atEOF() {
			p.advance()
		}
		return &ast.Begin{}, nil
	case p.kw("commit"), p.kw("end"):
		return &ast.Commit{}, nil
	case p.kw("rollback"):
		return &ast.Rollback{}, nil
	case p.kw("listen"):
		return p.parseListen()
	case p.kw("notify"):
		return p.parseNotify()
	default:
		return nil, syntaxErrf(p.cur().pos, "unrecognized statement starting at %q", p.cur().text)
	}
}

func (p *parser) parseCreate() (ast.Statement, error) {
	p.advance() // CREATE
	if p.kw("table") {
		p.advance()
		return p.parseCreateTableBody()
	}
	if p.kw("type") {
		p.advance()
		return p.parseCreateTypeBody()
	}
	return nil, syntaxErrf(p.cur().pos, "unsupported CREATE form %q", p.cur().text)
}

func (p *parser) parseCreateTypeBody() (*ast.CreateType, error) {
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("as"); err != nil {
		return nil, err
	}
	if err := p.expectKw("enum"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var labels []string
	for {
		t := p.cur()
		if t.kind != tokString {
			return nil, syntaxErrf(t.pos, "expected string label, got %q", t.text)
		}
		labels = append(labels, t.text)
		p.advance()
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return &ast.CreateType{Name: name, Labels: labels}, nil
}

func (p *parser) parseCreateTableBody() (*ast.CreateTable, error) {
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var cols []ast.ColumnDef
	for {
		cd, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		cols = append(cols, cd)
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return &ast.CreateTable{Name: name, Columns: cols}, nil
}

func (p *parser) parseColumnDef() (ast.ColumnDef, error) {
	name, err := p.ident()
	if err != nil {
		return ast.ColumnDef{}, err
	}
	typeName, err := p.ident()
	if err != nil {
		return ast.ColumnDef{}, err
	}
	cd := ast.ColumnDef{Name: name, TypeName: strings.ToUpper(typeName)}
	for {
		switch {
		case p.kw("not"):
			p.advance()
			if err := p.expectKw("null"); err != nil {
				return cd, err
			}
			cd.NotNull = true
		case p.kw("unique"):
			p.advance()
			cd.Unique = true
		case p.kw("primary"):
			p.advance()
			if err := p.expectKw("key"); err != nil {
				return cd, err
			}
			cd.PrimaryKey = true
			cd.NotNull = true
		case p.kw("default"):
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return cd, err
			}
			cd.Default = e
		case p.kw("check"):
			p.advance()
			if err := p.expectPunct("("); err != nil {
				return cd, err
			}
			e, err := p.parseExpr()
			if err != nil {
				return cd, err
			}
			if err := p.expectPunct(")"); err != nil {
				return cd, err
			}
			cd.Check = e
		case p.kw("references"):
			p.advance()
			tbl, err := p.ident()
			if err != nil {
				return cd, err
			}
			fk := &ast.FKRef{Table: tbl}
			if p.punct("(") {
				p.advance()
				col, err := p.ident()
				if err != nil {
					return cd, err
				}
				fk.Column = col
				if err := p.expectPunct(")"); err != nil {
					return cd, err
				}
			}
			for p.kw("on") {
				p.advance()
				var which *string
				if p.kw("delete") {
					p.advance()
					which = &fk.OnDelete
				} else if p.kw("update") {
					p.advance()
					which = &fk.OnUpdate
				}
				action, err := p.parseFKAction()
				if err != nil {
					return cd, err
				}
				if which != nil {
					*which = action
				}
			}
			cd.References = fk
		default:
			return cd, nil
		}
	}
}

func (p *parser) parseFKAction() (string, error) {
	switch {
	case p.kw("cascade"):
		p.advance()
		return "cascade", nil
	case p.kw("restrict"):
		p.advance()
		return "restrict", nil
	case p.kw("no"):
		p.advance()
		if err := p.expectKw("action"); err != nil {
			return "", err
		}
		return "no action", nil
	case p.kw("set"):
		p.advance()
		if p.kw("null") {
			p.advance()
			return "set null", nil
		}
		if err := p.expectKw("default"); err != nil {
			return "", err
		}
		return "set default", nil
	default:
		return "", syntaxErrf(p.cur().pos, "expected FK action, got %q", p.cur().text)
	}
}

func (p *parser) parseDrop() (ast.Statement, error) {
	p.advance() // DROP
	if err := p.expectKw("table"); err != nil {
		return nil, err
	}
	ifExists := false
	if p.kw("if") {
		p.advance()
		if err := p.expectKw("exists"); err != nil {
			return nil, err
		}
		ifExists = true
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	return &ast.DropTable{Name: name, IfExists: ifExists}, nil
}

func (p *parser) parseListen() (ast.Statement, error) {
	p.advance() // LISTEN
	channel, err := p.ident()
	if err != nil {
		return nil, err
	}
	return &ast.Listen{Channel: channel}, nil
}

func (p *parser) parseNotify() (ast.Statement, error) {
	p.advance() // NOTIFY
	channel, err := p.ident()
	if err != nil {
		return nil, err
	}
	payload := ""
	if p.punct(",") {
		p.advance()
		t := p.cur()
		if t.kind != tokString {
			return nil, syntaxErrf(t.pos, "expected string literal payload, got %q", t.text)
		}
		payload = t.text
		p.advance()
	}
	return &ast.Notify{Channel: channel, Payload: payload}, nil
}

func (p *parser) parseInsert() (*ast.Insert, error) {
	p.advance() // INSERT
	if err := p.expectKw("into"); err != nil {
		return nil, err
	}
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	var cols []string
	if p.punct("(") {
		p.advance()
		for {
			c, err := p.ident()
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
			if p.punct(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}
	if err := p.expectKw("values"); err != nil {
		return nil, err
	}
	var rows [][]ast.Expr
	for {
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var row []ast.Expr
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			row = append(row, e)
			if p.punct(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	return &ast.Insert{Table: table, Columns: cols, Rows: rows}, nil
}

func (p *parser) parseUpdate() (*ast.Update, error) {
	p.advance() // UPDATE
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("set"); err != nil {
		return nil, err
	}
	var sets []ast.Assignment
	for {
		col, err := p.ident()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sets = append(sets, ast.Assignment{Column: col, Value: val})
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	var where ast.Expr
	if p.kw("where") {
		p.advance()
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Update{Table: table, Set: sets, Where: where}, nil
}

func (p *parser) parseDelete() (*ast.Delete, error) {
	p.advance() // DELETE
	if err := p.expectKw("from"); err != nil {
		return nil, err
	}
	table, err := p.ident()
	if err != nil {
		return nil, err
	}
	var where ast.Expr
	if p.kw("where") {
		p.advance()
		where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Delete{Table: table, Where: where}, nil
}

func (p *parser) parseSelect() (*ast.Select, error) {
	p.advance() // SELECT
	sel := &ast.Select{}
	if p.kw("distinct") {
		p.advance()
		sel.Distinct = true
	}
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		sel.Items = append(sel.Items, item)
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	if p.kw("from") {
		p.advance()
		tbl, err := p.ident()
		if err != nil {
			return nil, err
		}
		sel.From = tbl
		if p.kw("as") {
			p.advance()
			alias, err := p.ident()
			if err != nil {
				return nil, err
			}
			sel.FromAlias = alias
		} else if p.cur().kind == tokIdent && !p.isReservedStart() {
			alias, _ := p.ident()
			sel.FromAlias = alias
		}
		for p.isJoinStart() {
			jc, err := p.parseJoinClause()
			if err != nil {
				return nil, err
			}
			sel.Joins = append(sel.Joins, jc)
		}
	}
	if p.kw("where") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = e
	}
	if p.kw("group") {
		p.advance()
		if err := p.expectKw("by"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sel.GroupBy = append(sel.GroupBy, e)
			if p.punct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if p.kw("having") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Having = e
	}
	if p.kw("order") {
		p.advance()
		if err := p.expectKw("by"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			oi := ast.OrderItem{Expr: e}
			if p.kw("asc") {
				p.advance()
			} else if p.kw("desc") {
				p.advance()
				oi.Desc = true
			}
			if p.kw("nulls") {
				p.advance()
				if p.kw("first") {
					p.advance()
					oi.Nulls = "first"
				} else if p.kw("last") {
					p.advance()
					oi.Nulls = "last"
				}
			}
			sel.OrderBy = append(sel.OrderBy, oi)
			if p.punct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if p.kw("limit") {
		p.advance()
		n, err := p.parseIntLiteralValue()
		if err != nil {
			return nil, err
		}
		sel.Limit = &n
	}
	if p.kw("offset") {
		p.advance()
		n, err := p.parseIntLiteralValue()
		if err != nil {
			return nil, err
		}
		sel.Offset = &n
	}
	return sel, nil
}

func (p *parser) isReservedStart() bool {
	for _, kw := range []string{"where", "group", "having", "order", "limit", "offset", "join", "inner", "left", "right", "full", "outer", "semi", "anti"} {
		if p.kw(kw) {
			return true
		}
	}
	return false
}

func (p *parser) isJoinStart() bool {
	return p.kw("join") || p.kw("inner") || p.kw("left") || p.kw("right") || p.kw("full") || p.kw("semi") || p.kw("anti")
}

func (p *parser) parseJoinClause() (ast.JoinClause, error) {
	kind := ast.JoinInner
	switch {
	case p.kw("inner"):
		p.advance()
	case p.kw("left"):
		p.advance()
		kind = ast.JoinLeft
		if p.kw("outer") {
			p.advance()
		}
	case p.kw("right"):
		p.advance()
		kind = ast.JoinRight
		if p.kw("outer") {
			p.advance()
		}
	case p.kw("full"):
		p.advance()
		kind = ast.JoinFull
		if p.kw("outer") {
			p.advance()
		}
	case p.kw("semi"):
		p.advance()
		kind = ast.JoinSemi
	case p.kw("anti"):
		p.advance()
		kind = ast.JoinAnti
	}
	if err := p.expectKw("join"); err != nil {
		return ast.JoinClause{}, err
	}
	table, err := p.ident()
	if err != nil {
		return ast.JoinClause{}, err
	}
	jc := ast.JoinClause{Kind: kind, Table: table}
	if p.kw("as") {
		p.advance()
		alias, err := p.ident()
		if err != nil {
			return jc, err
		}
		jc.Alias = alias
	} else if p.cur().kind == tokIdent && !p.kw("on") {
		alias, _ := p.ident()
		jc.Alias = alias
	}
	if err := p.expectKw("on"); err != nil {
		return jc, err
	}
	on, err := p.parseExpr()
	if err != nil {
		return jc, err
	}
	jc.On = on
	return jc, nil
}

func (p *parser) parseSelectItem() (ast.SelectItem, error) {
	if p.punct("*") {
		p.advance()
		return ast.SelectItem{Expr: &ast.Star{}}, nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return ast.SelectItem{}, err
	}
	item := ast.SelectItem{Expr: e}
	if p.kw("as") {
		p.advance()
		alias, err := p.ident()
		if err != nil {
			return item, err
		}
		item.Alias = alias
	} else if p.cur().kind == tokIdent && !p.isReservedStart() {
		alias, _ := p.ident()
		item.Alias = alias
	}
	return item, nil
}

func (p *parser) parseIntLiteralValue() (int64, error) {
	t := p.cur()
	if t.kind != tokNumber {
		return 0, syntaxErrf(t.pos, "expected number, got %q", t.text)
	}
	p.advance()
	n, err := strconv.ParseInt(t.text, 10, 64)
	if err != nil {
		return 0, syntaxErrf(t.pos, "invalid integer literal %q", t.text)
	}
	return n, nil
}

// --- expression parsing: precedence-climbing ---

func (p *parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.kw("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.kw("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (ast.Expr, error) {
	if p.kw("not") {
		p.advance()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: "not", X: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	if p.kw("is") {
		p.advance()
		negate := false
		if p.kw("not") {
			p.advance()
			negate = true
		}
		if err := p.expectKw("null"); err != nil {
			return nil, err
		}
		op := "isnull"
		if negate {
			op = "isnotnull"
		}
		return &ast.UnaryExpr{Op: op, X: left}, nil
	}
	if p.kw("like") {
		p.advance()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Op: "like", Left: left, Right: right}, nil
	}
	if p.kw("in") {
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		// IN-list desugars to a chain of ORs over equality.
		var elems []ast.Expr
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.punct(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		var out ast.Expr = &ast.BinaryExpr{Op: "=", Left: left, Right: elems[0]}
		for _, e := range elems[1:] {
			out = &ast.BinaryExpr{Op: "or", Left: out, Right: &ast.BinaryExpr{Op: "=", Left: left, Right: e}}
		}
		return out, nil
	}

	ops := map[string]string{"=": "=", "<>": "<>", "!=": "<>", "<": "<", "<=": "<=", ">": ">", ">=": ">="}
	if p.cur().kind == tokPunct {
		if op, ok := ops[p.cur().text]; ok {
			p.advance()
			right, err := p.parseAddSub()
			if err != nil {
				return nil, err
			}
			return &ast.BinaryExpr{Op: op, Left: left, Right: right}, nil
		}
	}
	return left, nil
}

func (p *parser) parseAddSub() (ast.Expr, error) {
	left, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for p.punct("+") || p.punct("-") {
		op := p.cur().text
		p.advance()
		right, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMulDiv() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.punct("*") || p.punct("/") || p.punct("%") {
		op := p.cur().text
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (ast.Expr, error) {
	if p.punct("-") {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: "-", X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	t := p.cur()
	switch {
	case t.kind == tokNumber:
		p.advance()
		kind := "int"
		if strings.Contains(t.text, ".") {
			kind = "float"
		}
		return &ast.Literal{Kind: kind, Text: t.text}, nil
	case t.kind == tokString:
		p.advance()
		return &ast.Literal{Kind: "string", Text: t.text}, nil
	case t.kind == tokParam:
		p.advance()
		n, _ := strconv.Atoi(t.text)
		return &ast.Literal{Kind: "param", Num: n}, nil
	case p.kw("true"):
		p.advance()
		return &ast.Literal{Kind: "bool", Bool: true}, nil
	case p.kw("false"):
		p.advance()
		return &ast.Literal{Kind: "bool", Bool: false}, nil
	case p.kw("null"):
		p.advance()
		return &ast.Literal{Kind: "null"}, nil
	case p.kw("case"):
		return p.parseCase()
	case p.punct("("):
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return e, nil
	case t.kind == tokIdent:
		name, _ := p.ident()
		if p.punct(".") {
			p.advance()
			if p.punct("*") {
				p.advance()
				return &ast.Star{Table: name}, nil
			}
			col, err := p.ident()
			if err != nil {
				return nil, err
			}
			return &ast.ColumnRef{Table: name, Column: col}, nil
		}
		if p.punct("(") {
			p.advance()
			fc := &ast.FuncCall{Name: strings.ToUpper(name)}
			if p.punct("*") {
				p.advance()
				fc.Star = true
			} else if !p.punct(")") {
				for {
					if p.kw("distinct") {
						p.advance()
					}
					a, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					fc.Args = append(fc.Args, a)
					if p.punct(",") {
						p.advance()
						continue
					}
					break
				}
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return fc, nil
		}
		return &ast.ColumnRef{Column: name}, nil
	default:
		return nil, syntaxErrf(t.pos, "unexpected token %q", t.text)
	}
}

func (p *parser) parseCase() (ast.Expr, error) {
	p.advance() // CASE
	ce := &ast.CaseExpr{}
	if !p.kw("when") {
		op, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Operand = op
	}
	for p.kw("when") {
		p.advance()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKw("then"); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Whens = append(ce.Whens, ast.WhenClause{Cond: cond, Then: then})
	}
	if p.kw("else") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Else = e
	}
	if err := p.expectKw("end"); err != nil {
		return nil, err
	}
	return ce, nil
}
