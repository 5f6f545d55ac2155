package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/gemblog/internal/model"
	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

const articleColumns = `id, title, excerpt, author, category, tags, content, image_url,
	date, read_time, featured, published, slug, published_at, created_at, updated_at`

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*model.Article, error) {
	a := &model.Article{}
	var category string
	var publishedAt sql.NullTime
	err := row.Scan(
		&a.ID, &a.Title, &a.Excerpt, &a.Author, &category, pq.Array(&a.Tags),
		&a.Content, &a.ImageURL, &a.Date, &a.ReadTime, &a.Featured, &a.Published,
		&a.Slug, &publishedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Category = model.Category(category)
	if publishedAt.Valid {
		t := publishedAt.Time
		a.PublishedAt = &t
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return a, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindByID(ctx context.Context, id string) (*model.Article, error) {
	a, err := scanArticle(r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by ID: %w", err)
	}
	return a, nil
}

// FindBySlug はスラッグで記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindBySlug(ctx context.Context, slug string) (*model.Article, error) {
	a, err := scanArticle(r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE slug = $1`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by slug: %w", err)
	}
	return a, nil
}

// List は条件に一致する記事をcreated_atの降順で返す。
func (r *PostgresArticleRepo) List(ctx context.Context, filter model.ArticleFilter) ([]*model.Article, error) {
	query, args := buildListQuery(filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles := []*model.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}
	return articles, nil
}

// buildListQuery は一覧取得のSQLとパラメータを組み立てる。
func buildListQuery(filter model.ArticleFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.PublishedOnly {
		conds = append(conds, "published = true")
	}
	if filter.FeaturedOnly {
		conds = append(conds, "featured = true")
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		conds = append(conds, fmt.Sprintf(
			"(title ILIKE $%[1]d OR excerpt ILIKE $%[1]d OR content ILIKE $%[1]d OR array_to_string(tags, ' ') ILIKE $%[1]d)",
			len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + articleColumns + ` FROM articles`)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

// escapeLike はLIKEパターンのワイルドカードをエスケープする。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Create は記事を作成する。スラッグが重複した場合はErrDuplicateSlugを返す。
func (r *PostgresArticleRepo) Create(ctx context.Context, a *model.Article) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (id, title, excerpt, author, category, tags, content, image_url,
		                       date, read_time, featured, published, slug, published_at,
		                       created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		a.ID, a.Title, a.Excerpt, a.Author, string(a.Category), pq.Array(a.Tags), a.Content, a.ImageURL,
		a.Date, a.ReadTime, a.Featured, a.Published, a.Slug, a.PublishedAt,
		a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateSlug
	}
	if err != nil {
		return fmt.Errorf("failed to create article: %w", err)
	}
	return nil
}

// Update は既存記事を上書き更新する。
func (r *PostgresArticleRepo) Update(ctx context.Context, a *model.Article) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE articles SET
		    title = $2, excerpt = $3, author = $4, category = $5, tags = $6,
		    content = $7, image_url = $8, date = $9, read_time = $10,
		    featured = $11, published = $12, slug = $13, published_at = $14,
		    updated_at = $15
		 WHERE id = $1`,
		a.ID, a.Title, a.Excerpt, a.Author, string(a.Category), pq.Array(a.Tags),
		a.Content, a.ImageURL, a.Date, a.ReadTime,
		a.Featured, a.Published, a.Slug, a.PublishedAt,
		a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateSlug
	}
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	return requireAffected(result)
}

// Delete は指定IDの記事を削除する。
func (r *PostgresArticleRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	return requireAffected(result)
}

// Stats は管理画面向けの件数を集計する。
func (r *PostgresArticleRepo) Stats(ctx context.Context) (*model.ArticleStats, error) {
	s := &model.ArticleStats{}
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE published),
		        count(*) FILTER (WHERE NOT published),
		        count(*) FILTER (WHERE featured),
		        count(DISTINCT category) FILTER (WHERE published AND category <> '')
		 FROM articles`,
	).Scan(&s.Total, &s.Published, &s.Drafts, &s.Featured, &s.Categories)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate article stats: %w", err)
	}
	return s, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
