package repository

import (
	"context"

	"fleetops/server/internal/model"
)

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, banned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.Banned, user.CreatedAt, user.UpdatedAt)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	row := s.db.QueryRow(ctx, `
		SELECT id, name, email, password_hash, role, banned, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Banned,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	row := s.db.QueryRow(ctx, `
		SELECT id, name, email, password_hash, role, banned, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Banned,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, email, password_hash, role, banned, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&user.Banned,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, user model.User) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users
		SET name = $1, email = $2, password_hash = $3, role = $4, banned = $5, updated_at = $6
		WHERE id = $7
	`, user.Name, user.Email, user.PasswordHash, user.Role, user.Banned, user.UpdatedAt, user.ID)
	return err
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	return err
}

// CountUserReferences reports how many timesheets or maintenance logs
// still point at the user; deletion is blocked while any remain.
func (s *Store) CountUserReferences(ctx context.Context, userID string) (int64, error) {
	var count int64
	row := s.db.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM timesheets WHERE driver_id = $1 OR approver_id = $1)
		     + (SELECT COUNT(*) FROM maintenance_logs WHERE performed_by = $1)
	`, userID)
	err := row.Scan(&count)
	return count, err
}
