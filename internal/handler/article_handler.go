package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/gemblog/internal/htmlconv"
	"github.com/hitoshi/gemblog/internal/model"
)

// dateLayout は記事の日付の入出力形式。
const dateLayout = "2006-01-02"

// maxListLimit は記事一覧の取得件数の上限。
const maxListLimit = 100

// ArticleServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type ArticleServiceInterface interface {
	Categories() []model.Category
	Create(ctx context.Context, in model.ArticleInput) (*model.Article, error)
	Update(ctx context.Context, id string, patch model.ArticlePatch) (*model.Article, error)
	GetByID(ctx context.Context, id string) (*model.Article, error)
	GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*model.Article, error)
	List(ctx context.Context, filter model.ArticleFilter) ([]*model.Article, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*model.ArticleStats, error)
	Export(ctx context.Context, id, format string) ([]byte, error)
}

// HTMLSanitizer は公開記事のHTMLをサニタイズする。security.ContentSanitizerServiceが満たす。
type HTMLSanitizer interface {
	Sanitize(rawHTML string) string
}

// ArticleHandler は記事の公開APIと管理APIのHTTPハンドラー。
type ArticleHandler struct {
	service   ArticleServiceInterface
	sanitizer HTMLSanitizer
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(service ArticleServiceInterface, sanitizer HTMLSanitizer) *ArticleHandler {
	return &ArticleHandler{service: service, sanitizer: sanitizer}
}

// --- リクエスト・レスポンス型 ---

// articleResponse は記事のレスポンス。一覧ではContentを省略する。
type articleResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Excerpt     string     `json:"excerpt"`
	Author      string     `json:"author"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	Content     string     `json:"content,omitempty"`
	ContentHTML string     `json:"content_html,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	Date        string     `json:"date"`
	ReadTime    string     `json:"read_time"`
	Featured    bool       `json:"featured"`
	Published   bool       `json:"published"`
	Slug        string     `json:"slug"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

type articleListResponse struct {
	Articles []articleResponse `json:"articles"`
	Total    int               `json:"total"`
}

// articleRequest は記事の作成・更新リクエストのボディ。
// 更新ではnilのフィールドを変更しない。
type articleRequest struct {
	Title     *string   `json:"title"`
	Excerpt   *string   `json:"excerpt"`
	Author    *string   `json:"author"`
	Category  *string   `json:"category"`
	Tags      *[]string `json:"tags"`
	Content   *string   `json:"content"`
	ImageURL  *string   `json:"image_url"`
	Date      *string   `json:"date"`
	Featured  *bool     `json:"featured"`
	Published *bool     `json:"published"`
}

type statsResponse struct {
	Total      int `json:"total"`
	Published  int `json:"published"`
	Drafts     int `json:"drafts"`
	Featured   int `json:"featured"`
	Categories int `json:"categories"`
}

// --- 公開API ---

// ListPublished は公開記事の一覧を返す。
// GET /api/articles?category=xxx&q=xxx&featured=true&limit=n
func (h *ArticleHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	filter.PublishedOnly = true
	h.list(w, r, filter)
}

// GetPublished は公開記事をslugで取得する。本文はサニタイズ済みHTMLも含む。
// GET /api/articles/{slug}
func (h *ArticleHandler) GetPublished(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetBySlug(r.Context(), chi.URLParam(r, "slug"), true)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := toArticleResponse(a, true)
	html := htmlconv.MarkdownToHTML(a.Content)
	if h.sanitizer != nil {
		html = h.sanitizer.Sanitize(html)
	}
	resp.ContentHTML = html
	writeJSON(w, http.StatusOK, resp)
}

// ListCategories は選択可能なカテゴリを返す。
// GET /api/categories
func (h *ArticleHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats := h.service.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": names})
}

// --- 管理API ---

// ListAll は下書きを含む全記事の一覧を返す。
// GET /api/admin/articles?category=xxx&q=xxx&featured=true&limit=n
func (h *ArticleHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	h.list(w, r, filter)
}

// Get は記事をIDで取得する。
// GET /api/admin/articles/{id}
func (h *ArticleHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleResponse(a, true))
}

// Create は記事を作成する。
// POST /api/admin/articles
func (h *ArticleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		handleServiceError(w, err)
		return
	}

	a, err := h.service.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toArticleResponse(a, true))
}

// Update は記事を部分更新する。
// PATCH /api/admin/articles/{id}
func (h *ArticleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		handleServiceError(w, err)
		return
	}

	a, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleResponse(a, true))
}

// Delete は記事を削除する。
// DELETE /api/admin/articles/{id}
func (h *ArticleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export は記事をフロントマター付きMarkdownとしてダウンロードさせる。
// GET /api/admin/articles/{id}/export?format=yaml|toml
func (h *ArticleHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := h.service.Export(r.Context(), id, r.URL.Query().Get("format"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".md"))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Stats は管理画面向けの記事統計を返す。
// GET /api/admin/stats
func (h *ArticleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Stats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Total:      st.Total,
		Published:  st.Published,
		Drafts:     st.Drafts,
		Featured:   st.Featured,
		Categories: st.Categories,
	})
}

func (h *ArticleHandler) list(w http.ResponseWriter, r *http.Request, filter model.ArticleFilter) {
	articles, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := articleListResponse{Articles: make([]articleResponse, len(articles)), Total: len(articles)}
	for i, a := range articles {
		resp.Articles[i] = toArticleResponse(a, false)
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseFilter はクエリパラメータから一覧の絞り込み条件を組み立てる。
// 不正な値の場合は400を書き込み、falseを返す。
func parseFilter(w http.ResponseWriter, r *http.Request) (model.ArticleFilter, bool) {
	q := r.URL.Query()
	filter := model.ArticleFilter{
		Category: model.Category(q.Get("category")),
		Query:    strings.TrimSpace(q.Get("q")),
	}

	if v := q.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("featured", "Valor inválido para featured"))
			return filter, false
		}
		filter.FeaturedOnly = featured
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxListLimit {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("limit", fmt.Sprintf("O limite deve estar entre 1 e %d", maxListLimit)))
			return filter, false
		}
		filter.Limit = limit
	}
	return filter, true
}

func (req articleRequest) toInput() (model.ArticleInput, error) {
	in := model.ArticleInput{
		Title:     deref(req.Title),
		Excerpt:   deref(req.Excerpt),
		Author:    deref(req.Author),
		Category:  model.Category(deref(req.Category)),
		Content:   deref(req.Content),
		ImageURL:  deref(req.ImageURL),
		Featured:  req.Featured != nil && *req.Featured,
		Published: req.Published != nil && *req.Published,
	}
	if req.Tags != nil {
		in.Tags = *req.Tags
	}
	if req.Date != nil && *req.Date != "" {
		d, err := parseDate(*req.Date)
		if err != nil {
			return in, err
		}
		in.Date = d
	}
	return in, nil
}

func (req articleRequest) toPatch() (model.ArticlePatch, error) {
	patch := model.ArticlePatch{
		Title:     req.Title,
		Excerpt:   req.Excerpt,
		Author:    req.Author,
		Tags:      req.Tags,
		Content:   req.Content,
		ImageURL:  req.ImageURL,
		Featured:  req.Featured,
		Published: req.Published,
	}
	if req.Category != nil {
		c := model.Category(*req.Category)
		patch.Category = &c
	}
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			return patch, err
		}
		patch.Date = &d
	}
	return patch, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, model.NewValidationError("date", "Data inválida (use AAAA-MM-DD)")
	}
	return d, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toArticleResponse(a *model.Article, withContent bool) articleResponse {
	resp := articleResponse{
		ID:          a.ID,
		Title:       a.Title,
		Excerpt:     a.Excerpt,
		Author:      a.Author,
		Category:    string(a.Category),
		Tags:        a.Tags,
		ImageURL:    a.ImageURL,
		Date:        a.Date.Format(dateLayout),
		ReadTime:    a.ReadTime,
		Featured:    a.Featured,
		Published:   a.Published,
		Slug:        a.Slug,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		PublishedAt: a.PublishedAt,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if withContent {
		resp.Content = a.Content
	}
	return resp
}
