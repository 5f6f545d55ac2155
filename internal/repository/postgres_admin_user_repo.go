package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/gemblog/internal/model"
)

// PostgresAdminUserRepo はPostgreSQLを使用した管理者リポジトリ。
type PostgresAdminUserRepo struct {
	db *sql.DB
}

// NewPostgresAdminUserRepo はPostgresAdminUserRepoを生成する。
func NewPostgresAdminUserRepo(db *sql.DB) *PostgresAdminUserRepo {
	return &PostgresAdminUserRepo{db: db}
}

// FindByEmail はメールアドレスで管理者を検索する。見つからない場合はnilを返す。
func (r *PostgresAdminUserRepo) FindByEmail(ctx context.Context, email string) (*model.AdminUser, error) {
	return r.findOne(ctx, `WHERE lower(email) = lower($1)`, email)
}

// FindByID は指定IDの管理者を取得する。見つからない場合はnilを返す。
func (r *PostgresAdminUserRepo) FindByID(ctx context.Context, id string) (*model.AdminUser, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

func (r *PostgresAdminUserRepo) findOne(ctx context.Context, where string, arg string) (*model.AdminUser, error) {
	u := &model.AdminUser{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM admin_users `+where,
		arg,
	).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find admin user: %w", err)
	}
	return u, nil
}

// Create は管理者を作成する。メールアドレスが重複した場合はエラーを返す。
func (r *PostgresAdminUserRepo) Create(ctx context.Context, u *model.AdminUser) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_users (id, email, name, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AdminUserRepository = (*PostgresAdminUserRepo)(nil)
