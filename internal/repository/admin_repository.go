package repository

import (
	"context"
	"database/sql"

	"github.com/visualscripts/license-api/internal/model"
	"github.com/visualscripts/license-api/internal/utils"
)

// AdminRepo manages operator accounts for the panel and admin surfaces.
type AdminRepo struct{ DB *sql.DB }

// NewAdminRepo returns a new AdminRepo bound to the given database.
func NewAdminRepo(db *sql.DB) *AdminRepo { return &AdminRepo{DB: db} }

// Create inserts an operator with a bcrypt-hashed password and returns
// its ID. ErrConflict when the username is taken.
func (r *AdminRepo) Create(ctx context.Context, username, password, role string, cost int) (uint64, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO admins (username, password_hash, role) VALUES (?, ?, ?)`,
		username, hash, role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUsername fetches an operator account by username.
func (r *AdminRepo) GetByUsername(ctx context.Context, username string) (model.Admin, error) {
	var a model.Admin
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM admins WHERE username = ? LIMIT 1`,
		username).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt)
	return a, err
}

// GetByID fetches an operator account by id.
func (r *AdminRepo) GetByID(ctx context.Context, id uint64) (model.Admin, error) {
	var a model.Admin
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM admins WHERE id = ? LIMIT 1`,
		id).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt)
	return a, err
}
