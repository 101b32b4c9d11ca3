package schema

import (
	"fmt"
	"sort"
	"sync"

	GORMSchema "gorm.io/gorm/schema"
)

// Table represents a gorm model
type Table struct {
	*GORMSchema.Schema
	Columns []*Column
}

func (t *Table) TableName() string {
	return t.Table
}

// Column looks a column up by its database name
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.DBName == name {
			return c, true
		}
	}
	return nil, false
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// PrimaryKey returns the database name of the primary key column
func (t *Table) PrimaryKey() string {
	if t.PrioritizedPrimaryField != nil {
		return t.PrioritizedPrimaryField.DBName
	}
	return ""
}

func CreateTableFromModel(model interface{}) (*Table, error) {
	modelSchema, err := GORMSchema.Parse(model, &sync.Map{}, GORMSchema.NamingStrategy{})
	if err != nil {
		return nil, err
	}

	columns := make([]*Column, 0)

	for _, field := range modelSchema.Fields {
		if field.DBName == "" {
			continue
		}
		column := &Column{
			Field: field,
		}
		columns = append(columns, column)
	}

	return &Table{Schema: modelSchema, Columns: columns}, nil
}

// Registry holds the parsed tables of a store, keyed by table name
type Registry struct {
	tables map[string]*Table
}

// NewRegistry parses every model and indexes it by its table name
func NewRegistry(models ...interface{}) (*Registry, error) {
	r := &Registry{tables: make(map[string]*Table, len(models))}
	for _, model := range models {
		t, err := CreateTableFromModel(model)
		if err != nil {
			return nil, fmt.Errorf("failed to parse model %T: %w", model, err)
		}
		r.tables[t.TableName()] = t
	}
	return r, nil
}

// Lookup returns the table registered under name
func (r *Registry) Lookup(name string) (*Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}

// Names returns the registered table names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateColumns checks that every column exists on the named table
func (r *Registry) ValidateColumns(table string, columns []string) error {
	t, ok := r.Lookup(table)
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	for _, c := range columns {
		if !t.HasColumn(c) {
			return fmt.Errorf("unknown column %q on table %q", c, table)
		}
	}
	return nil
}
