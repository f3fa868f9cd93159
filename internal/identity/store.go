package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no matching row exists.
	ErrNotFound = errors.New("identity: not found")
	// ErrEmailTaken is returned when registering with an email that
	// already has an account.
	ErrEmailTaken = errors.New("identity: email already registered")
)

const pgUniqueViolation = "23505"

// PgxPool is the subset of pgxpool.Pool the store needs. Tests inject
// pgxmock through it.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists users, patients and doctors in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	return &Store{pool: pool}
}

// FindUserByEmail looks up a user by email. The password hash is stripped
// unless includePassword is set.
func (s *Store) FindUserByEmail(ctx context.Context, email string, includePassword bool) (*User, error) {
	return s.findUser(ctx, `SELECT id, email, password_hash, type, created_at FROM users WHERE email = $1`, email, includePassword)
}

// FindUserByID looks up a user by id. The password hash is stripped unless
// includePassword is set.
func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID, includePassword bool) (*User, error) {
	return s.findUser(ctx, `SELECT id, email, password_hash, type, created_at FROM users WHERE id = $1`, id, includePassword)
}

func (s *Store) findUser(ctx context.Context, query string, arg any, includePassword bool) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Type, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("identity: find user: %w", err)
	}
	if !includePassword {
		u.PasswordHash = ""
	}
	return &u, nil
}

// RegisterPatient inserts the base user row and the patient role row in a
// single transaction so an account can never exist without its role.
func (s *Store) RegisterPatient(ctx context.Context, p RegisterPatientParams) (*User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity: register patient: %w", err)
	}
	defer tx.Rollback(ctx)

	u, err := insertUser(ctx, tx, p.Email, p.PasswordHash, TypePatient)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO patients (user_id, first_name, last_name, age, insurance) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, p.FirstName, p.LastName, p.Age, p.Insurance,
	)
	if err != nil {
		return nil, fmt.Errorf("identity: insert patient row: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("identity: register patient: %w", err)
	}
	return u, nil
}

// RegisterDoctor inserts the base user row and the doctor role row in a
// single transaction.
func (s *Store) RegisterDoctor(ctx context.Context, d RegisterDoctorParams) (*User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity: register doctor: %w", err)
	}
	defer tx.Rollback(ctx)

	u, err := insertUser(ctx, tx, d.Email, d.PasswordHash, TypeDoctor)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO doctors (user_id, first_name, last_name, department) VALUES ($1, $2, $3, $4)`,
		u.ID, d.FirstName, d.LastName, d.Department,
	)
	if err != nil {
		return nil, fmt.Errorf("identity: insert doctor row: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("identity: register doctor: %w", err)
	}
	return u, nil
}

func insertUser(ctx context.Context, tx pgx.Tx, email, hash, userType string) (*User, error) {
	u := User{Email: email, Type: userType}
	err := tx.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, type) VALUES ($1, $2, $3) RETURNING id, created_at`,
		email, hash, userType,
	).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("identity: insert user: %w", err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// GetPatient loads the patient role row for a user id.
func (s *Store) GetPatient(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	var p Patient
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, first_name, last_name, age, insurance, doctor_id FROM patients WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Age, &p.Insurance, &p.DoctorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("identity: get patient: %w", err)
	}
	return &p, nil
}

// GetDoctor loads the doctor role row for a user id.
func (s *Store) GetDoctor(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	var d Doctor
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, first_name, last_name, department FROM doctors WHERE user_id = $1`,
		userID,
	).Scan(&d.UserID, &d.FirstName, &d.LastName, &d.Department)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("identity: get doctor: %w", err)
	}
	return &d, nil
}

// UpdateProfile merges non-empty fields into the user and its role row,
// both in one transaction. userType selects which role table holds the
// display name.
func (s *Store) UpdateProfile(ctx context.Context, userID uuid.UUID, userType string, upd ProfileUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("identity: update profile: %w", err)
	}
	defer tx.Rollback(ctx)

	if upd.Email != "" {
		if _, err := tx.Exec(ctx, `UPDATE users SET email = $1 WHERE id = $2`, upd.Email, userID); err != nil {
			if isUniqueViolation(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("identity: update email: %w", err)
		}
	}

	roleTable := "patients"
	if userType == TypeDoctor {
		roleTable = "doctors"
	}
	_, err = tx.Exec(ctx,
		`UPDATE `+roleTable+` SET
		    first_name = COALESCE(NULLIF($1, ''), first_name),
		    last_name  = COALESCE(NULLIF($2, ''), last_name)
		 WHERE user_id = $3`,
		upd.FirstName, upd.LastName, userID,
	)
	if err != nil {
		return fmt.Errorf("identity: update role row: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("identity: update profile: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, userID uuid.UUID, hash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, userID)
	if err != nil {
		return fmt.Errorf("identity: update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAddress returns the stored address for a user, or ErrNotFound when
// none is set.
func (s *Store) GetAddress(ctx context.Context, userID uuid.UUID) (*Address, error) {
	var a Address
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, street, city, state, zip FROM addresses WHERE user_id = $1`, userID,
	).Scan(&a.UserID, &a.Street, &a.City, &a.State, &a.Zip)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("identity: get address: %w", err)
	}
	return &a, nil
}

// UpsertAddress creates or replaces the user's address.
func (s *Store) UpsertAddress(ctx context.Context, a Address) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO addresses (user_id, street, city, state, zip) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET
		    street = EXCLUDED.street, city = EXCLUDED.city,
		    state = EXCLUDED.state, zip = EXCLUDED.zip`,
		a.UserID, a.Street, a.City, a.State, a.Zip,
	)
	if err != nil {
		return fmt.Errorf("identity: upsert address: %w", err)
	}
	return nil
}

// AssignDoctor links a patient to a doctor. Used by clinic staff tooling
// and test fixtures; there is no public route for it.
func (s *Store) AssignDoctor(ctx context.Context, patientUserID, doctorUserID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE patients SET doctor_id = $1 WHERE user_id = $2`, doctorUserID, patientUserID,
	)
	if err != nil {
		return fmt.Errorf("identity: assign doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
