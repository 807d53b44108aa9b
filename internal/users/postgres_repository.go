package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Postgres error codes the repository translates.
const (
	pqInsufficientPrivilege = "42501"
	pqUniqueViolation       = "23505"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the live record for id.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	const query = `
		SELECT id, role, profile_completed, created_at, updated_at
		FROM user_records
		WHERE id = $1 AND deleted_at IS NULL
	`

	var row recordRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return Record{}, classifyError(err)
	}
	return row.toRecord(), nil
}

// Insert creates a record, failing with ErrConflict when one exists.
func (r *PostgresRepository) Insert(ctx context.Context, record Record) (Record, error) {
	const query = `
		INSERT INTO user_records (id, role, profile_completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id, role, profile_completed, created_at, updated_at
	`

	var row recordRow
	if err := r.db.GetContext(ctx, &row, query, record.ID, string(record.Role), record.ProfileCompleted, time.Now().UTC()); err != nil {
		return Record{}, classifyError(err)
	}
	return row.toRecord(), nil
}

// Upsert creates or replaces the role and completion flag of a record.
func (r *PostgresRepository) Upsert(ctx context.Context, record Record) (Record, error) {
	const query = `
		INSERT INTO user_records (id, role, profile_completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role,
			profile_completed = EXCLUDED.profile_completed,
			updated_at = EXCLUDED.updated_at,
			deleted_at = NULL
		RETURNING id, role, profile_completed, created_at, updated_at
	`

	var row recordRow
	if err := r.db.GetContext(ctx, &row, query, record.ID, string(record.Role), record.ProfileCompleted, time.Now().UTC()); err != nil {
		return Record{}, classifyError(err)
	}
	return row.toRecord(), nil
}

// CompleteOnboarding writes the role profile and sets profile_completed in one transaction.
func (r *PostgresRepository) CompleteOnboarding(ctx context.Context, id uuid.UUID, profile Profile) (Record, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin onboarding: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	switch {
	case profile.Student != nil:
		const upsertStudent = `
			INSERT INTO student_profiles (user_id, full_name, university, major, graduation_year, bio, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (user_id) DO UPDATE
			SET full_name = EXCLUDED.full_name,
				university = EXCLUDED.university,
				major = EXCLUDED.major,
				graduation_year = EXCLUDED.graduation_year,
				bio = EXCLUDED.bio,
				updated_at = EXCLUDED.updated_at
		`
		s := profile.Student
		if _, err := tx.ExecContext(ctx, upsertStudent, id, s.FullName, s.University, s.Major, s.GraduationYear, s.Bio); err != nil {
			return Record{}, classifyError(err)
		}
	case profile.Business != nil:
		const upsertBusiness = `
			INSERT INTO business_profiles (user_id, company_name, industry, website, description, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (user_id) DO UPDATE
			SET company_name = EXCLUDED.company_name,
				industry = EXCLUDED.industry,
				website = EXCLUDED.website,
				description = EXCLUDED.description,
				updated_at = EXCLUDED.updated_at
		`
		b := profile.Business
		if _, err := tx.ExecContext(ctx, upsertBusiness, id, b.CompanyName, b.Industry, b.Website, b.Description); err != nil {
			return Record{}, classifyError(err)
		}
	default:
		return Record{}, fmt.Errorf("%w: profile is empty", ErrValidation)
	}

	const markComplete = `
		UPDATE user_records
		SET profile_completed = TRUE, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING id, role, profile_completed, created_at, updated_at
	`
	var row recordRow
	if err := tx.GetContext(ctx, &row, markComplete, id); err != nil {
		return Record{}, classifyError(err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit onboarding: %w", err)
	}
	return row.toRecord(), nil
}

// classifyError maps driver errors onto the package taxonomy.
func classifyError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqInsufficientPrivilege:
			return fmt.Errorf("%w: %s", ErrPermission, pqErr.Message)
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
		}
	}
	return err
}

type recordRow struct {
	ID               uuid.UUID `db:"id"`
	Role             string    `db:"role"`
	ProfileCompleted bool      `db:"profile_completed"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r recordRow) toRecord() Record {
	return Record{
		ID:               r.ID,
		Role:             Role(r.Role),
		ProfileCompleted: r.ProfileCompleted,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}
