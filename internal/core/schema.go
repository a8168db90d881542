package core

// Schema represents the structure of a row table.
type Schema struct {
	// TableName is the name of the table.
	TableName string

	// PrimaryKey is the name of the primary key column.
	PrimaryKey string

	// Columns contains all column definitions for the table, in ordinal order.
	Columns []Column

	// Indexes contains all index definitions for the table.
	Indexes []Index
}

// Column represents a single column in a database table.
type Column struct {
	// Name is the column name.
	Name string

	// Type is the database type (e.g., "INT", "VARCHAR(255)", "TIMESTAMP").
	Type string

	// Nullable indicates whether the column can contain NULL values.
	Nullable bool

	// Default is the default value for the column, if any.
	Default interface{}
}

// Index represents a database index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
	Primary bool
}

// Column looks up a column definition by name.
func (s *Schema) Column(name string) (Column, bool) {
	if s == nil {
		return Column{}, false
	}
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in ordinal order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}
