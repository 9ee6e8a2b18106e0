package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PackageRepository persists credit packages.
type PackageRepository interface {
	Create(ctx context.Context, pkg CreditPackage) error
	Get(ctx context.Context, id string) (CreditPackage, error)
	List(ctx context.Context) ([]CreditPackage, error)
}

// ResourceRepository persists resources.
type ResourceRepository interface {
	Create(ctx context.Context, res Resource) error
	Get(ctx context.Context, id string) (Resource, error)
	List(ctx context.Context) ([]Resource, error)
}

// PostgresPackageRepository stores credit packages in PostgreSQL.
type PostgresPackageRepository struct {
	db *pgxpool.Pool
}

// NewPostgresPackageRepository builds a Postgres-backed package repository.
func NewPostgresPackageRepository(db *pgxpool.Pool) *PostgresPackageRepository {
	return &PostgresPackageRepository{db: db}
}

// Create inserts a credit package record.
func (r *PostgresPackageRepository) Create(ctx context.Context, pkg CreditPackage) error {
	_, err := r.db.Exec(ctx, `INSERT INTO credit_packages (id, credits, unit_amount, currency, created_at)
        VALUES ($1, $2, $3, $4, $5)`, pkg.ID, pkg.Credits, pkg.UnitAmount, pkg.Currency, pkg.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrPackageExists, pkg.ID)
		}
		return fmt.Errorf("insert package: %w", err)
	}
	return nil
}

// Get fetches a credit package by identifier.
func (r *PostgresPackageRepository) Get(ctx context.Context, id string) (CreditPackage, error) {
	row := r.db.QueryRow(ctx, `SELECT id, credits, unit_amount, currency, created_at
        FROM credit_packages WHERE id = $1`, id)

	var pkg CreditPackage
	var createdAt time.Time
	if err := row.Scan(&pkg.ID, &pkg.Credits, &pkg.UnitAmount, &pkg.Currency, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditPackage{}, ErrPackageNotFound
		}
		return CreditPackage{}, fmt.Errorf("select package: %w", err)
	}
	pkg.CreatedAt = createdAt.UTC()
	return pkg, nil
}

// List returns all credit packages, newest first.
func (r *PostgresPackageRepository) List(ctx context.Context) ([]CreditPackage, error) {
	rows, err := r.db.Query(ctx, `SELECT id, credits, unit_amount, currency, created_at
        FROM credit_packages ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select packages: %w", err)
	}
	defer rows.Close()

	var res []CreditPackage
	for rows.Next() {
		var pkg CreditPackage
		var createdAt time.Time
		if err := rows.Scan(&pkg.ID, &pkg.Credits, &pkg.UnitAmount, &pkg.Currency, &createdAt); err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		pkg.CreatedAt = createdAt.UTC()
		res = append(res, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// PostgresResourceRepository stores resources in PostgreSQL.
type PostgresResourceRepository struct {
	db *pgxpool.Pool
}

// NewPostgresResourceRepository builds a Postgres-backed resource repository.
func NewPostgresResourceRepository(db *pgxpool.Pool) *PostgresResourceRepository {
	return &PostgresResourceRepository{db: db}
}

// Create inserts a resource record.
func (r *PostgresResourceRepository) Create(ctx context.Context, res Resource) error {
	_, err := r.db.Exec(ctx, `INSERT INTO resources (id, cost, name, description, title, content, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		res.ID, res.Cost, res.Name, res.Description, res.Title, res.Content, res.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

// Get fetches a resource by identifier.
func (r *PostgresResourceRepository) Get(ctx context.Context, id string) (Resource, error) {
	row := r.db.QueryRow(ctx, `SELECT id, cost, name, description, title, content, created_at, updated_at
        FROM resources WHERE id = $1`, id)
	return scanResource(row)
}

// List returns all resources, newest first.
func (r *PostgresResourceRepository) List(ctx context.Context) ([]Resource, error) {
	rows, err := r.db.Query(ctx, `SELECT id, cost, name, description, title, content, created_at, updated_at
        FROM resources ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select resources: %w", err)
	}
	defer rows.Close()

	var res []Resource
	for rows.Next() {
		item, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func scanResource(row pgx.Row) (Resource, error) {
	var res Resource
	var createdAt, updatedAt time.Time
	err := row.Scan(&res.ID, &res.Cost, &res.Name, &res.Description, &res.Title, &res.Content, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Resource{}, ErrResourceNotFound
		}
		return Resource{}, fmt.Errorf("scan resource: %w", err)
	}
	res.CreatedAt = createdAt.UTC()
	res.UpdatedAt = updatedAt.UTC()
	return res, nil
}
