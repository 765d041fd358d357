// Package featurestore loads the offline member and product feature
// snapshots into memory and serves them read-only.
package featurestore

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/opensource-retail/harrier/internal/domain"
)

var (
	// ErrEmptySnapshot is returned when the product snapshot has no rows.
	// A store without products cannot recommend anything, so construction
	// fails instead of every request failing.
	ErrEmptySnapshot = errors.New("product snapshot is empty")

	ErrNotFound = errors.New("record not found")
)

// Store implements domain.FeatureStore over database/sql.
// Works with both SQLite and PostgreSQL drivers. Snapshots are loaded
// once at construction and swapped atomically on Reload.
type Store struct {
	db     *sql.DB
	driver string

	mu       sync.RWMutex
	members  map[string]*domain.MemberFeatures
	products map[string]*domain.Product
	version  string
}

// New opens the configured database, runs migrations and loads both
// snapshots. Fails if the product snapshot is empty.
func New(cfg domain.FeatureStoreConfig) (*Store, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:     db,
		driver: cfg.Driver,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := store.Reload(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// NewStatic builds a store directly from in-memory snapshots. Intended
// for tests and for embedding without a database.
func NewStatic(version string, members map[string]*domain.MemberFeatures, products map[string]*domain.Product) *Store {
	if members == nil {
		members = map[string]*domain.MemberFeatures{}
	}
	if products == nil {
		products = map[string]*domain.Product{}
	}
	return &Store{
		members:  members,
		products: products,
		version:  version,
	}
}

func (s *Store) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// Reload re-reads both snapshots from the database and swaps them in
// atomically. On error the previous snapshots stay in place.
func (s *Store) Reload() error {
	if s.db == nil {
		return nil
	}

	members, err := s.loadMembers()
	if err != nil {
		return fmt.Errorf("failed to load member snapshot: %w", err)
	}

	products, err := s.loadProducts()
	if err != nil {
		return fmt.Errorf("failed to load product snapshot: %w", err)
	}
	if len(products) == 0 {
		return ErrEmptySnapshot
	}

	version, err := s.loadVersion()
	if err != nil {
		return fmt.Errorf("failed to load snapshot version: %w", err)
	}

	s.mu.Lock()
	s.members = members
	s.products = products
	s.version = version
	s.mu.Unlock()

	return nil
}

func (s *Store) loadMembers() (map[string]*domain.MemberFeatures, error) {
	query := `
		SELECT member_code, total_consumption, accumulated_bonus,
		       recency, frequency, monetary
		FROM member_features
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make(map[string]*domain.MemberFeatures)
	for rows.Next() {
		var m domain.MemberFeatures
		if err := rows.Scan(
			&m.MemberCode, &m.TotalConsumption, &m.AccumulatedBonus,
			&m.Recency, &m.Frequency, &m.Monetary,
		); err != nil {
			return nil, err
		}
		members[m.MemberCode] = &m
	}

	return members, rows.Err()
}

func (s *Store) loadProducts() (map[string]*domain.Product, error) {
	query := `
		SELECT stock_id, stock_description, category, brand,
		       avg_price, popularity_score
		FROM product_features
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make(map[string]*domain.Product)
	for rows.Next() {
		var p domain.Product
		var category, brand sql.NullString
		if err := rows.Scan(
			&p.ID, &p.Description, &category, &brand,
			&p.AvgPrice, &p.PopularityScore,
		); err != nil {
			return nil, err
		}
		p.Category = category.String
		p.Brand = brand.String
		products[p.ID] = &p
	}

	return products, rows.Err()
}

func (s *Store) loadVersion() (string, error) {
	query := `SELECT value FROM snapshot_meta WHERE key = 'version'`

	var version string
	err := s.db.QueryRow(query).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "unversioned", nil
	}
	if err != nil {
		return "", err
	}
	return version, nil
}

// MemberFeatures returns the feature row for a member.
func (s *Store) MemberFeatures(memberCode string) (*domain.MemberFeatures, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberCode]
	return m, ok
}

// Product returns the feature row for a product.
func (s *Store) Product(productID string) (*domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	return p, ok
}

// Products returns the current product snapshot. Callers must not
// mutate the returned map.
func (s *Store) Products() map[string]*domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products
}

// ProductIDs returns all product ids in the snapshot.
func (s *Store) ProductIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.products))
	for id := range s.products {
		ids = append(ids, id)
	}
	return ids
}

// MemberCount reports the member snapshot size.
func (s *Store) MemberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// ProductCount reports the product snapshot size.
func (s *Store) ProductCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// Version identifies the loaded snapshot.
func (s *Store) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Close closes the database connection, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
