package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/gemblog/internal/draft"
)

// DraftManagerInterface はエディタのハンドラーが必要とするセッション管理のインターフェース。
// draft.Managerが満たす。
type DraftManagerInterface interface {
	Begin(ctx context.Context, articleID string) (draft.State, error)
	State(id string) (draft.State, error)
	Apply(ctx context.Context, id string, ops []draft.Op) (draft.State, error)
	UpdateMeta(ctx context.Context, id string, meta draft.Meta) (draft.State, error)
	Save(ctx context.Context, id string) (draft.State, error)
	Publish(ctx context.Context, id string) (*draft.PublishResult, error)
	Close(ctx context.Context, id string) error
}

// DraftHandler はエディタの編集セッションのHTTPハンドラー。
type DraftHandler struct {
	manager DraftManagerInterface
}

// NewDraftHandler はDraftHandlerを生成する。
func NewDraftHandler(manager DraftManagerInterface) *DraftHandler {
	return &DraftHandler{manager: manager}
}

type openDraftRequest struct {
	ArticleID string `json:"article_id"`
}

type applyOpsRequest struct {
	Ops []draft.Op `json:"ops"`
}

type publishResponse struct {
	Article  articleResponse `json:"article"`
	Redirect string          `json:"redirect"`
}

// Open は編集セッションを開始する。article_idを指定すると既存記事を編集する。
// POST /api/admin/drafts
func (h *DraftHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openDraftRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	st, err := h.manager.Begin(r.Context(), req.ArticleID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// Get は編集セッションの状態を返す。
// GET /api/admin/drafts/{id}
func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.manager.State(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// UpdateMeta はタイトルなどのメタ情報を置き換える。
// PUT /api/admin/drafts/{id}/meta
func (h *DraftHandler) UpdateMeta(w http.ResponseWriter, r *http.Request) {
	var meta draft.Meta
	if !decodeJSON(w, r, &meta) {
		return
	}

	st, err := h.manager.UpdateMeta(r.Context(), chi.URLParam(r, "id"), meta)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ApplyOps は編集操作列を順に適用する。
// POST /api/admin/drafts/{id}/ops
func (h *DraftHandler) ApplyOps(w http.ResponseWriter, r *http.Request) {
	var req applyOpsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	st, err := h.manager.Apply(r.Context(), chi.URLParam(r, "id"), req.Ops)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Save はデバウンスを待たずに保存する。
// POST /api/admin/drafts/{id}/save
func (h *DraftHandler) Save(w http.ResponseWriter, r *http.Request) {
	st, err := h.manager.Save(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Publish は下書きを検証して公開する。成功すると管理画面へのリダイレクト先を返す。
// POST /api/admin/drafts/{id}/publish
func (h *DraftHandler) Publish(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.Publish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, publishResponse{
		Article:  toArticleResponse(res.Article, false),
		Redirect: res.Redirect,
	})
}

// Close は編集セッションを破棄する。未保存の変更は保存しない。
// DELETE /api/admin/drafts/{id}
func (h *DraftHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
