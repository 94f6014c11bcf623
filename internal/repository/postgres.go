package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/antonrybalko/wfm-mbaas-go/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures
const uniqueViolation = "23505"

// PostgresUserRepository implements UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewPostgresUserRepository creates a new PostgreSQL user repository
func NewPostgresUserRepository(db *sql.DB, logger *zap.SugaredLogger) *PostgresUserRepository {
	return &PostgresUserRepository{db: db, logger: logger}
}

const userColumns = `id, username, name, email, position, phone, avatar, password_hash, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.Position, &u.Phone, &u.Avatar, &u.Password, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns all users ordered by username
func (r *PostgresUserRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM wfm_users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// GetUser returns the user with id
func (r *PostgresUserRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM wfm_users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns the user with username
func (r *PostgresUserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM wfm_users WHERE username = $1`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// SaveUser inserts or updates a user
func (r *PostgresUserRepository) SaveUser(ctx context.Context, u *domain.User) error {
	if u == nil || u.ID == "" || u.Username == "" {
		return ErrInvalidInput
	}

	r.logger.Debugw("Saving user", "userID", u.ID, "username", u.Username)

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO wfm_users (id, username, name, email, position, phone, avatar, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			position = EXCLUDED.position,
			phone = EXCLUDED.phone,
			avatar = EXCLUDED.avatar,
			password_hash = EXCLUDED.password_hash,
			updated_at = now()
		RETURNING created_at, updated_at
	`, u.ID, u.Username, u.Name, u.Email, u.Position, u.Phone, u.Avatar, u.Password)

	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("username %s: %w", u.Username, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (r *PostgresUserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// PostgresDataRepository implements DataRepository on a JSONB table
type PostgresDataRepository struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewPostgresDataRepository creates a new PostgreSQL data repository
func NewPostgresDataRepository(db *sql.DB, logger *zap.SugaredLogger) *PostgresDataRepository {
	return &PostgresDataRepository{db: db, logger: logger}
}

func scanRecord(row interface{ Scan(...any) error }) (*domain.Record, error) {
	var (
		rec    domain.Record
		fields []byte
	)
	if err := row.Scan(&rec.GUID, &rec.Collection, &fields, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields of %s: %w", rec.GUID, err)
	}
	return &rec, nil
}

// List returns the records of a collection in creation order
func (r *PostgresDataRepository) List(ctx context.Context, collection string) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT guid, collection, fields, created_at, updated_at
		FROM mbaas_data WHERE collection = $1
		ORDER BY created_at, guid
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Create stores a new record with a generated GUID
func (r *PostgresDataRepository) Create(ctx context.Context, collection string, fields map[string]any) (*domain.Record, error) {
	if collection == "" {
		return nil, ErrInvalidInput
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO mbaas_data (guid, collection, fields)
		VALUES ($1, $2, $3)
		RETURNING guid, collection, fields, created_at, updated_at
	`, uuid.NewString(), collection, string(data))

	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}
	return rec, nil
}

// Get returns one record
func (r *PostgresDataRepository) Get(ctx context.Context, collection, guid string) (*domain.Record, error) {
	if _, err := uuid.Parse(guid); err != nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, guid, ErrNotFound)
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT guid, collection, fields, created_at, updated_at
		FROM mbaas_data WHERE collection = $1 AND guid = $2
	`, collection, guid)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, guid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// Update replaces the fields of a record
func (r *PostgresDataRepository) Update(ctx context.Context, collection, guid string, fields map[string]any) (*domain.Record, error) {
	if _, err := uuid.Parse(guid); err != nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, guid, ErrNotFound)
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE mbaas_data SET fields = $3, updated_at = now()
		WHERE collection = $1 AND guid = $2
		RETURNING guid, collection, fields, created_at, updated_at
	`, collection, guid, string(data))

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, guid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}
	return rec, nil
}

// Delete removes a record
func (r *PostgresDataRepository) Delete(ctx context.Context, collection, guid string) error {
	if _, err := uuid.Parse(guid); err != nil {
		return fmt.Errorf("%s/%s: %w", collection, guid, ErrNotFound)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM mbaas_data WHERE collection = $1 AND guid = $2`, collection, guid)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, guid, ErrNotFound)
	}
	return nil
}

// Ping checks the database connection
func (r *PostgresDataRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
