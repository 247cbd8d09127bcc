// Package tabular turns SPARQL result rows into the rows of a tabular data page.
package tabular

import (
	"strings"
)

// Field types with dedicated handling.
const (
	TypeItem        = "item"
	TypeLabel       = "label"
	TypeDescription = "description"
	TypeAlias       = "alias"
	TypeString      = "string"
	TypeDate        = "date"
	TypeInt         = "int"
	TypeNumber      = "number"
)

// freeFormSigil marks a column that is taken verbatim from a query variable.
const freeFormSigil = "?"

type knownField struct {
	name string
	typ  string
}

// knownFields maps accepted bare column names to the field they register.
var knownFields = map[string]knownField{
	"item":        {TypeItem, TypeItem},
	"label":       {TypeLabel, TypeLabel},
	"description": {TypeDescription, TypeDescription},
	"alias":       {TypeAlias, TypeAlias},
	"qid":         {TypeItem, TypeItem},
}

// TermTypes lists the field types filled from the term store, in lookup order.
var TermTypes = []string{TypeLabel, TypeDescription, TypeAlias}

// Field is a single named, typed column.
type Field struct {
	Name string
	Type string
}

// ColumnSpec is an ordered set of typed columns. Order is output column order.
type ColumnSpec struct {
	names []string
	types map[string]string
}

// NewColumnSpec creates an empty spec.
func NewColumnSpec() *ColumnSpec {
	return &ColumnSpec{types: make(map[string]string)}
}

// DefaultColumns is used when a template declares no columns.
func DefaultColumns() *ColumnSpec {
	s := NewColumnSpec()
	s.Add(TypeItem, TypeItem)
	s.Add(TypeLabel, TypeLabel)
	return s
}

// ParseColumns parses a declaration such as "qid,label,?born:date".
func ParseColumns(decl string) (*ColumnSpec, error) {
	s := NewColumnSpec()
	for _, token := range strings.Split(decl, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if err := s.parseField(token); err != nil {
			return nil, err
		}
	}
	if s.Len() == 0 {
		return nil, ErrEmptySpec
	}
	return s, nil
}

func (s *ColumnSpec) parseField(token string) error {
	name, typ, found := strings.Cut(token, ":")
	name = strings.TrimSpace(name)
	typ = strings.TrimSpace(typ)
	if !found || typ == "" {
		typ = TypeString
	}

	if strings.HasPrefix(name, freeFormSigil) {
		bare := strings.TrimPrefix(name, freeFormSigil)
		if bare == "" {
			return &UnknownFieldError{Name: name}
		}
		s.Add(bare, typ)
		return nil
	}

	known, ok := knownFields[name]
	if !ok {
		return &UnknownFieldError{Name: name}
	}
	s.Add(known.name, known.typ)
	return nil
}

// Add appends a field. Re-adding an existing name keeps its position and updates the type.
func (s *ColumnSpec) Add(name, typ string) {
	if _, ok := s.types[name]; !ok {
		s.names = append(s.names, name)
	}
	s.types[name] = typ
}

// HasField reports whether name is declared.
func (s *ColumnSpec) HasField(name string) bool {
	_, ok := s.types[name]
	return ok
}

// Type returns the declared type of name.
func (s *ColumnSpec) Type(name string) (string, bool) {
	t, ok := s.types[name]
	return t, ok
}

// SetFieldType changes the type of an existing field.
func (s *ColumnSpec) SetFieldType(name, typ string) error {
	if !s.HasField(name) {
		return &UnknownFieldError{Name: name}
	}
	s.types[name] = typ
	return nil
}

// DropExtraFields removes every field not listed in keep.
// Item fields always stay: term columns are joined on them.
func (s *ColumnSpec) DropExtraFields(keep ...string) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}

	names := s.names[:0]
	for _, name := range s.names {
		_, kept := keepSet[name]
		if kept || s.types[name] == TypeItem {
			names = append(names, name)
			continue
		}
		delete(s.types, name)
	}
	s.names = names
}

// ItemField returns the column holding entity ids: "item" if declared,
// else the first item-typed field, else "".
func (s *ColumnSpec) ItemField() string {
	if s.types[TypeItem] == TypeItem {
		return TypeItem
	}
	for _, name := range s.names {
		if s.types[name] == TypeItem {
			return name
		}
	}
	return ""
}

// Fields returns the columns in order.
func (s *ColumnSpec) Fields() []Field {
	out := make([]Field, len(s.names))
	for i, name := range s.names {
		out[i] = Field{Name: name, Type: s.types[name]}
	}
	return out
}

// Len returns the number of columns.
func (s *ColumnSpec) Len() int {
	return len(s.names)
}

// String renders the spec in declaration syntax, for logs.
func (s *ColumnSpec) String() string {
	parts := make([]string, len(s.names))
	for i, name := range s.names {
		parts[i] = name + ":" + s.types[name]
	}
	return strings.Join(parts, ",")
}
