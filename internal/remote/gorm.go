package remote

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/beesaferoot/propertyhub/internal/migration"
	"github.com/beesaferoot/propertyhub/internal/models"
	"github.com/beesaferoot/propertyhub/internal/schema"
)

// Migrations versions the server schema
var Migrations = []*migration.Migration{
	migration.AutoMigrateModels("20250301000001", "create_property_schema", models.AllModels()...),
}

// Dialector picks the gorm driver for dsn: "sqlite:<path>" opens SQLite,
// anything else is handed to Postgres.
func Dialector(dsn string) (gorm.Dialector, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL not set in environment or .env file")
	}
	if path, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		return sqlite.Open(path), nil
	}
	return postgres.Open(dsn), nil
}

// GormStore serves the remote store contract from a relational database
type GormStore struct {
	db     *gorm.DB
	tables *schema.Registry
}

// Open prepares a connection pool for the database named by dsn. No
// connection is made until the first call, so a device can start offline.
func Open(dsn string, cfg *gorm.Config) (*GormStore, error) {
	dialector, err := Dialector(dsn)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	cfg.TranslateError = true
	cfg.DisableAutomaticPing = true
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return NewGormStore(db)
}

// NewGormStore serves the registered models from db
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	tables, err := schema.NewRegistry(models.AllModels()...)
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db, tables: tables}, nil
}

// DB exposes the underlying connection
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Migrator returns a migrator over the server schema
func (s *GormStore) Migrator() *migration.Migrator {
	return migration.NewMigrator(s.db, Migrations...)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *GormStore) table(name string) (*schema.Table, error) {
	t, ok := s.tables.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

func (s *GormStore) scoped(ctx context.Context, table string, q Query) (*gorm.DB, error) {
	t, err := s.table(table)
	if err != nil {
		return nil, err
	}
	columns := make([]string, 0, len(q.Where))
	for c := range q.Where {
		columns = append(columns, c)
	}
	order, desc := strings.TrimPrefix(q.Order, "-"), strings.HasPrefix(q.Order, "-")
	if order != "" {
		columns = append(columns, order)
	}
	if err := s.tables.ValidateColumns(table, columns); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Model(reflect.New(t.ModelType).Interface())
	for _, name := range q.Preload {
		root, _, _ := strings.Cut(name, ".")
		if _, ok := t.Relationships.Relations[root]; !ok {
			return nil, fmt.Errorf("unknown association %q on table %q", name, table)
		}
		tx = tx.Preload(name)
	}
	if len(q.Where) > 0 {
		tx = tx.Where(q.Where)
	}
	if order != "" {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Table: clause.CurrentTable, Name: order}, Desc: desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx, nil
}

func (s *GormStore) SelectWhere(ctx context.Context, table string, q Query, dest interface{}) error {
	tx, err := s.scoped(ctx, table, q)
	if err != nil {
		return err
	}
	return translate("select", table, tx.Find(dest).Error)
}

func (s *GormStore) SelectOne(ctx context.Context, table string, q Query, dest interface{}) error {
	tx, err := s.scoped(ctx, table, q)
	if err != nil {
		return err
	}
	return translate("select", table, tx.Take(dest).Error)
}

func (s *GormStore) Insert(ctx context.Context, table string, record interface{}) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	if rt := reflect.Indirect(reflect.ValueOf(record)).Type(); rt != t.ModelType {
		return fmt.Errorf("cannot insert %s into %s", rt, table)
	}
	return translate("insert", table, s.db.WithContext(ctx).Omit(clause.Associations).Create(record).Error)
}

func (s *GormStore) Update(ctx context.Context, table string, id uint, fields map[string]interface{}) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	columns := make([]string, 0, len(fields))
	for c := range fields {
		columns = append(columns, c)
	}
	if err := s.tables.ValidateColumns(table, columns); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(reflect.New(t.ModelType).Interface()).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translate("update", table, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %d", ErrNotFound, table, id)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, table string, id uint) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	return translate("delete", table, s.db.WithContext(ctx).Delete(reflect.New(t.ModelType).Interface(), id).Error)
}

func translate(op, table string, err error) error {
	var netErr net.Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, table)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s: %v", ErrDuplicate, table, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn), errors.As(err, &netErr):
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, op, table, err)
	default:
		return fmt.Errorf("remote %s %s: %w", op, table, err)
	}
}
