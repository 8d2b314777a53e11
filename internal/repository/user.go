package repository

import (
	"database/sql"

	"github.com/dcreum/dcrflow/internal/domain"
	"github.com/dcreum/dcrflow/pkg/dcrflow/core"
)

// UserRepository provides persistence methods for the users table.
type UserRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewUserRepository(db *sql.DB, clock core.Clock) *UserRepository {
	return &UserRepository{db: db, clock: clock}
}

// Save inserts a new user and returns its generated id.
// It will set Created to now if it's not provided (null or zero).
func (r *UserRepository) Save(u *domain.User) (int64, error) {
	if !u.Created.Valid {
		u.Created = sql.NullTime{Time: r.clock.Now().UTC(), Valid: true}
	}
	if !u.Enabled.Valid {
		u.Enabled = sql.NullBool{Bool: true, Valid: true}
	}

	base := `
        INSERT INTO users (username, key_hash, created, enabled)
        VALUES (` + placeholder(1) + `,` + placeholder(2) + `,` + placeholder(3) + `,` + placeholder(4) + `)
    `

	var id int64
	var err error
	if supportsReturning() {
		err = r.db.QueryRow(
			base+" RETURNING id",
			u.Username,
			u.KeyHash,
			u.Created,
			u.Enabled,
		).Scan(&id)
	} else {
		res, e := r.db.Exec(base,
			u.Username,
			u.KeyHash,
			u.Created,
			u.Enabled,
		)
		if e != nil {
			err = e
		} else {
			newID, e2 := res.LastInsertId()
			if e2 != nil {
				err = e2
			} else {
				id = newID
			}
		}
	}
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

// FindByUsername fetches a user by exact username. Returns (nil, nil) if not found.
func (r *UserRepository) FindByUsername(username string) (*domain.User, error) {
	query := `
        SELECT id, username, key_hash, created, enabled
        FROM users
        WHERE username = ` + placeholder(1) + `
        LIMIT 1
    `
	var u domain.User
	err := r.db.QueryRow(query, username).Scan(
		&u.ID,
		&u.Username,
		&u.KeyHash,
		&u.Created,
		&u.Enabled,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindAll returns all users ordered by id ascending.
func (r *UserRepository) FindAll() ([]*domain.User, error) {
	query := `
        SELECT id, username, key_hash, created, enabled
        FROM users
        ORDER BY id ASC
    `
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID,
			&u.Username,
			&u.KeyHash,
			&u.Created,
			&u.Enabled,
		); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
