package schema

import (
	GORMSchema "gorm.io/gorm/schema"
)

// Column represents a gorm field
type Column struct {
	*GORMSchema.Field
}

// ColumnName returns the database column name
func (c *Column) ColumnName() string {
	return c.DBName
}

// Indexed reports whether the column is covered by an index of its own
func (c *Column) Indexed() bool {
	if c.PrimaryKey {
		return true
	}
	for _, idx := range c.Schema.ParseIndexes() {
		if len(idx.Fields) > 0 && idx.Fields[0].DBName == c.DBName {
			return true
		}
	}
	return false
}
