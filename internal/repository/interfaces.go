// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/gemblog/internal/model"
)

// ErrDuplicateSlug はスラッグが既存の記事と重複した場合のエラー。
var ErrDuplicateSlug = errors.New("repository: duplicate article slug")

// ErrNotFound は更新・削除の対象が存在しない場合のエラー。
var ErrNotFound = errors.New("repository: row not found")

// ArticleRepository は記事データの永続化インターフェース。
type ArticleRepository interface {
	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Article, error)

	// FindBySlug はスラッグで記事を取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Article, error)

	// List は条件に一致する記事をcreated_atの降順で返す。
	// Queryはタイトル、概要、本文、タグに対して大文字小文字を区別せずに照合する。
	List(ctx context.Context, filter model.ArticleFilter) ([]*model.Article, error)

	// Create は記事を作成する。IDとタイムスタンプは呼び出し側で設定する。
	// スラッグが重複した場合はErrDuplicateSlugを返す。
	Create(ctx context.Context, article *model.Article) error

	// Update は既存記事を上書き更新する。
	// 記事が存在しない場合はErrNotFound、スラッグが重複した場合はErrDuplicateSlugを返す。
	Update(ctx context.Context, article *model.Article) error

	// Delete は指定IDの記事を削除する。存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error

	// Stats は管理画面向けの件数を集計する。
	Stats(ctx context.Context) (*model.ArticleStats, error)
}

// AdminUserRepository は管理者アカウントの永続化インターフェース。
type AdminUserRepository interface {
	// FindByEmail はメールアドレスで管理者を検索する。大文字小文字は区別しない。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.AdminUser, error)

	// FindByID は指定IDの管理者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.AdminUser, error)

	// Create は管理者を作成する。
	Create(ctx context.Context, user *model.AdminUser) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
