// Package article は記事管理のドメインロジックを提供する。
//
// 記事の作成・更新時にスラッグと読了時間を導出し、公開記事のスラッグ参照は
// LRUキャッシュとsingleflightで重複した問い合わせをまとめる。
package article

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/gemblog/internal/metrics"
	"github.com/hitoshi/gemblog/internal/model"
	"github.com/hitoshi/gemblog/internal/readtime"
	"github.com/hitoshi/gemblog/internal/repository"
	"github.com/hitoshi/gemblog/internal/slug"
)

// DefaultCacheSize は公開記事キャッシュの既定の件数。
const DefaultCacheSize = 256

// Service は記事管理のサービス層。
type Service struct {
	repo    repository.ArticleRepository
	metrics metrics.MetricsCollector
	logger  *slog.Logger

	cache *lru.Cache[string, *model.Article]
	group singleflight.Group
	// genは書き込みによるキャッシュ無効化の回数。読み込み中に無効化された結果はキャッシュしない。
	cacheMu sync.Mutex
	gen     uint64

	now   func() time.Time
	newID func() string
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(repo repository.ArticleRepository, collector metrics.MetricsCollector, cacheSize int, logger *slog.Logger) *Service {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	// サイズが正であればエラーにならない
	cache, _ := lru.New[string, *model.Article](cacheSize)
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		metrics: collector,
		logger:  logger,
		cache:   cache,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Categories は選択可能なカテゴリを返す。
func (s *Service) Categories() []model.Category {
	return model.Categories()
}

// Create は記事を作成する。
// スラッグはタイトルから導出し、タイトルが空の場合は仮のスラッグを使う。
func (s *Service) Create(ctx context.Context, in model.ArticleInput) (*model.Article, error) {
	if in.Category != "" && !in.Category.Valid() {
		return nil, model.NewValidationError("category", "Selecione uma categoria válida.")
	}

	now := s.now()
	a := &model.Article{
		ID:        s.newID(),
		Title:     strings.TrimSpace(in.Title),
		Excerpt:   in.Excerpt,
		Author:    in.Author,
		Category:  in.Category,
		Tags:      cleanTags(in.Tags),
		Content:   in.Content,
		ImageURL:  in.ImageURL,
		Date:      in.Date,
		ReadTime:  readtime.ForMarkdown(in.Content).Label,
		Featured:  in.Featured,
		Published: in.Published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	a.Slug = slug.ForTitle(a.Title)
	if a.Date.IsZero() {
		a.Date = now
	}
	if a.Published {
		a.PublishedAt = &now
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, s.writeError(a, err)
	}
	s.recordWrite(metrics.OpCreate)
	s.logger.Info("記事を作成しました",
		slog.String("article_id", a.ID),
		slog.String("slug", a.Slug),
		slog.Bool("published", a.Published),
	)
	return a, nil
}

// Update は記事を部分更新する。
// 未公開の記事はタイトルの変更に合わせてスラッグを導出し直し、
// 一度公開された記事のスラッグは変更しない。
func (s *Service) Update(ctx context.Context, id string, patch model.ArticlePatch) (*model.Article, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldSlug := a.Slug

	if patch.Category != nil && *patch.Category != "" && !patch.Category.Valid() {
		return nil, model.NewValidationError("category", "Selecione uma categoria válida.")
	}
	applyPatch(a, patch)

	now := s.now()
	if a.PublishedAt == nil {
		if derived := slug.Make(a.Title); derived != "" {
			a.Slug = derived
		} else if !slug.IsPlaceholder(a.Slug) {
			a.Slug = slug.Placeholder()
		}
		if a.Published {
			a.PublishedAt = &now
		}
	}
	if patch.Content != nil {
		a.ReadTime = readtime.ForMarkdown(a.Content).Label
	}
	a.UpdatedAt = now

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, s.writeError(a, err)
	}
	s.invalidate(oldSlug, a.Slug)
	s.recordWrite(metrics.OpUpdate)
	return a, nil
}

// GetByID は記事を取得する。見つからない場合はNotFoundエラーを返す。
func (s *Service) GetByID(ctx context.Context, id string) (*model.Article, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewPersistenceError(err)
	}
	if a == nil {
		return nil, model.NewArticleNotFoundError(id)
	}
	return a, nil
}

// GetBySlug はスラッグで記事を取得する。
// publishedOnlyの場合は公開記事のみを返し、結果をキャッシュする。
func (s *Service) GetBySlug(ctx context.Context, articleSlug string, publishedOnly bool) (*model.Article, error) {
	if !publishedOnly {
		return s.findBySlug(ctx, articleSlug)
	}

	if a, ok := s.cache.Get(articleSlug); ok {
		return a, nil
	}

	v, err, _ := s.group.Do(articleSlug, func() (any, error) {
		gen := s.generation()
		a, err := s.findBySlug(ctx, articleSlug)
		if err != nil {
			return nil, err
		}
		if !a.Published {
			return nil, model.NewArticleNotFoundError(articleSlug)
		}
		s.cacheIfCurrent(gen, articleSlug, a)
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Article), nil
}

func (s *Service) findBySlug(ctx context.Context, articleSlug string) (*model.Article, error) {
	a, err := s.repo.FindBySlug(ctx, articleSlug)
	if err != nil {
		return nil, model.NewPersistenceError(err)
	}
	if a == nil {
		return nil, model.NewArticleNotFoundError(articleSlug)
	}
	return a, nil
}

// List は条件に一致する記事を作成日時の降順で返す。
func (s *Service) List(ctx context.Context, filter model.ArticleFilter) ([]*model.Article, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, model.NewValidationError("category", "Categoria desconhecida.")
	}
	articles, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, model.NewPersistenceError(err)
	}
	return articles, nil
}

// Delete は記事を削除する。見つからない場合はNotFoundエラーを返す。
func (s *Service) Delete(ctx context.Context, id string) error {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewArticleNotFoundError(id)
		}
		return model.NewPersistenceError(err)
	}
	s.invalidate(a.Slug)
	s.recordWrite(metrics.OpDelete)
	s.logger.Info("記事を削除しました", slog.String("article_id", id))
	return nil
}

// Stats は管理画面向けの記事統計を返す。
func (s *Service) Stats(ctx context.Context) (*model.ArticleStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, model.NewPersistenceError(err)
	}
	return stats, nil
}

// writeError はリポジトリの書き込みエラーをAPIエラーに変換する。
func (s *Service) writeError(a *model.Article, err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateSlug):
		return model.NewSlugConflictError(a.Slug)
	case errors.Is(err, repository.ErrNotFound):
		return model.NewArticleNotFoundError(a.ID)
	}
	s.logger.Error("記事の保存に失敗しました",
		slog.String("article_id", a.ID),
		slog.String("error", err.Error()),
	)
	return model.NewPersistenceError(fmt.Errorf("article %s: %w", a.ID, err))
}

func (s *Service) invalidate(slugs ...string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gen++
	for _, sl := range slugs {
		s.cache.Remove(sl)
		// 実行中の読み込みに後続の参照を合流させない
		s.group.Forget(sl)
	}
}

func (s *Service) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.gen
}

// cacheIfCurrent は読み込み開始後に無効化がなかった場合のみ記事をキャッシュする。
func (s *Service) cacheIfCurrent(gen uint64, articleSlug string, a *model.Article) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.gen == gen {
		s.cache.Add(articleSlug, a)
	}
}

func (s *Service) recordWrite(op string) {
	if s.metrics != nil {
		s.metrics.RecordArticleWritten(op)
	}
}

func applyPatch(a *model.Article, p model.ArticlePatch) {
	if p.Title != nil {
		a.Title = strings.TrimSpace(*p.Title)
	}
	if p.Excerpt != nil {
		a.Excerpt = *p.Excerpt
	}
	if p.Author != nil {
		a.Author = *p.Author
	}
	if p.Category != nil {
		a.Category = *p.Category
	}
	if p.Tags != nil {
		a.Tags = cleanTags(*p.Tags)
	}
	if p.Content != nil {
		a.Content = *p.Content
	}
	if p.ImageURL != nil {
		a.ImageURL = *p.ImageURL
	}
	if p.Date != nil && !p.Date.IsZero() {
		a.Date = *p.Date
	}
	if p.Featured != nil {
		a.Featured = *p.Featured
	}
	if p.Published != nil {
		a.Published = *p.Published
	}
}

// cleanTags は前後の空白を除去し、空のタグと重複を取り除く。
func cleanTags(tags []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
