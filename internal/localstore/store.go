package localstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/beesaferoot/propertyhub/internal/migration"
	"github.com/beesaferoot/propertyhub/internal/schema"
)

var (
	ErrNotFound      = errors.New("local record not found")
	ErrUnknownTable  = errors.New("unknown local table")
	ErrUnknownColumn = errors.New("unknown local column")
)

// Migrations versions the on-device schema
var Migrations = []*migration.Migration{
	migration.AutoMigrateModels("20250301000001", "create_offline_cache", allRecords()...),
}

// clearOrder deletes children before parents
var clearOrder = []string{
	TableSyncQueue,
	TablePayments,
	TableBookings,
	TableRooms,
	TableHostels,
	TableTenants,
	TableLandlords,
}

// Query selects rows of one table. Where holds column equalities; a slice
// value matches any of its elements. Order names a column, a leading "-"
// sorts descending.
type Query struct {
	Where map[string]interface{}
	Order string
	Limit int
}

// Store is the on-device cache. It is safe for concurrent use; SQLite
// serializes writers through a single connection.
type Store struct {
	db     *gorm.DB
	tables *schema.Registry
}

// Open opens (creating if needed) the SQLite database at path and brings its schema up to date
func Open(path string, cfg *gorm.Config) (*Store, error) {
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return New(db)
}

// New wraps an open database and applies pending local migrations
func New(db *gorm.DB) (*Store, error) {
	if _, err := migration.NewMigrator(db, Migrations...).Up(); err != nil {
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}
	tables, err := schema.NewRegistry(allRecords()...)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, tables: tables}, nil
}

// DB exposes the underlying connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Tables returns the names of every local table
func (s *Store) Tables() []string {
	return s.tables.Names()
}

func (s *Store) table(name string) (*schema.Table, error) {
	t, ok := s.tables.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

func (s *Store) checkColumns(table string, columns ...string) (*schema.Table, error) {
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	for _, c := range columns {
		if !t.HasColumn(c) {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, c)
		}
	}
	return t, nil
}

// Get loads the row with the given primary key into dest
func (s *Store) Get(ctx context.Context, dest Record, key interface{}) error {
	t, err := s.table(dest.TableName())
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Where(clause.Eq{Column: clause.Column{Name: t.PrimaryKey()}, Value: key}).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %v", ErrNotFound, t.TableName(), key)
	}
	return err
}

// Put inserts record or fully overwrites the row it collides with.
// Payments collide on their server id, everything else on the primary key.
func (s *Store) Put(ctx context.Context, record Record) error {
	if _, err := s.table(record.TableName()); err != nil {
		return err
	}
	onConflict := clause.OnConflict{UpdateAll: true}
	if record.TableName() == TablePayments {
		onConflict.Columns = []clause.Column{{Name: "id"}}
	}
	return s.db.WithContext(ctx).Omit(clause.Associations).Clauses(onConflict).Create(record).Error
}

// Add inserts record and returns the local key assigned to it
func (s *Store) Add(ctx context.Context, record LocalRecord) (uint, error) {
	if _, err := s.table(record.TableName()); err != nil {
		return 0, err
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return 0, err
	}
	return record.LocalKey(), nil
}

// Update applies fields to the row with the given primary key
func (s *Store) Update(ctx context.Context, table string, key interface{}, fields map[string]interface{}) error {
	columns := make([]string, 0, len(fields))
	for c := range fields {
		columns = append(columns, c)
	}
	t, err := s.checkColumns(table, columns...)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(reflect.New(t.ModelType).Interface()).
		Where(clause.Eq{Column: clause.Column{Name: t.PrimaryKey()}, Value: key}).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %v", ErrNotFound, table, key)
	}
	return nil
}

func (s *Store) scoped(ctx context.Context, table string, q Query) (*gorm.DB, error) {
	columns := make([]string, 0, len(q.Where)+1)
	for c := range q.Where {
		columns = append(columns, c)
	}
	order, desc := strings.TrimPrefix(q.Order, "-"), strings.HasPrefix(q.Order, "-")
	if order != "" {
		columns = append(columns, order)
	}
	if _, err := s.checkColumns(table, columns...); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Table(table)
	if len(q.Where) > 0 {
		tx = tx.Where(q.Where)
	}
	if order != "" {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: order}, Desc: desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx, nil
}

// Query loads the rows of table matching q into dest, a pointer to a slice of records
func (s *Store) Query(ctx context.Context, table string, q Query, dest interface{}) error {
	tx, err := s.scoped(ctx, table, q)
	if err != nil {
		return err
	}
	return tx.Find(dest).Error
}

// Count returns the number of rows of table matching q
func (s *Store) Count(ctx context.Context, table string, q Query) (int64, error) {
	q.Order, q.Limit = "", 0
	tx, err := s.scoped(ctx, table, q)
	if err != nil {
		return 0, err
	}
	var n int64
	err = tx.Count(&n).Error
	return n, err
}

// Clear deletes every row of table
func (s *Store) Clear(ctx context.Context, table string) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	return clearTable(s.db.WithContext(ctx), t)
}

func clearTable(db *gorm.DB, t *schema.Table) error {
	return db.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(reflect.New(t.ModelType).Interface()).Error
}

// ClearAll purges the whole cache, including unsynced payments and queue items
func (s *Store) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range clearOrder {
			t, err := s.table(name)
			if err != nil {
				return err
			}
			if err := clearTable(tx, t); err != nil {
				return fmt.Errorf("failed to clear %s: %w", name, err)
			}
		}
		return nil
	})
}

// LastSyncTime returns the most recent synced_at of table, or nil when the
// table holds no synced rows.
func (s *Store) LastSyncTime(ctx context.Context, table string) (*time.Time, error) {
	if _, err := s.checkColumns(table, "synced_at"); err != nil {
		return nil, err
	}
	var times []time.Time
	err := s.db.WithContext(ctx).Table(table).
		Where("synced_at IS NOT NULL").
		Order("synced_at DESC").
		Limit(1).
		Pluck("synced_at", &times).Error
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, nil
	}
	return &times[0], nil
}
