package remote

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("remote record not found")
	ErrUnavailable  = errors.New("remote store unavailable")
	ErrUnknownTable = errors.New("unknown remote table")
	ErrDuplicate    = errors.New("remote record already exists")
)

// Query selects rows of one remote table. Where holds column equalities; a
// slice value matches any of its elements. Order names a column, a leading
// "-" sorts descending. Preload names associations to join in.
type Query struct {
	Where   map[string]interface{}
	Order   string
	Limit   int
	Preload []string
}

// Store is the authoritative server-side data source, addressed per table
type Store interface {
	// SelectWhere loads every matching row into dest, a pointer to a slice of models
	SelectWhere(ctx context.Context, table string, q Query, dest interface{}) error
	// SelectOne loads the first matching row into dest or returns ErrNotFound
	SelectOne(ctx context.Context, table string, q Query, dest interface{}) error
	// Insert creates record and fills in its server-assigned fields
	Insert(ctx context.Context, table string, record interface{}) error
	// Update applies a partial update to the row with the given id
	Update(ctx context.Context, table string, id uint, fields map[string]interface{}) error
	// Delete removes the row with the given id; deleting a missing row is not an error
	Delete(ctx context.Context, table string, id uint) error
}

// Pinger is implemented by stores that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}
