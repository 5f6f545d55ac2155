package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/gemblog/internal/autosave"
	"github.com/hitoshi/gemblog/internal/draft"
	"github.com/hitoshi/gemblog/internal/model"
)

// mockDraftManager はDraftManagerInterfaceのモック実装。
type mockDraftManager struct {
	beginFn      func(ctx context.Context, articleID string) (draft.State, error)
	stateFn      func(id string) (draft.State, error)
	applyFn      func(ctx context.Context, id string, ops []draft.Op) (draft.State, error)
	updateMetaFn func(ctx context.Context, id string, meta draft.Meta) (draft.State, error)
	saveFn       func(ctx context.Context, id string) (draft.State, error)
	publishFn    func(ctx context.Context, id string) (*draft.PublishResult, error)
	closeFn      func(ctx context.Context, id string) error
}

func (m *mockDraftManager) Begin(ctx context.Context, articleID string) (draft.State, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx, articleID)
	}
	return draft.State{ID: "draft-1"}, nil
}

func (m *mockDraftManager) State(id string) (draft.State, error) {
	if m.stateFn != nil {
		return m.stateFn(id)
	}
	return draft.State{ID: id}, nil
}

func (m *mockDraftManager) Apply(ctx context.Context, id string, ops []draft.Op) (draft.State, error) {
	if m.applyFn != nil {
		return m.applyFn(ctx, id, ops)
	}
	return draft.State{ID: id}, nil
}

func (m *mockDraftManager) UpdateMeta(ctx context.Context, id string, meta draft.Meta) (draft.State, error) {
	if m.updateMetaFn != nil {
		return m.updateMetaFn(ctx, id, meta)
	}
	return draft.State{ID: id, Meta: meta}, nil
}

func (m *mockDraftManager) Save(ctx context.Context, id string) (draft.State, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, id)
	}
	return draft.State{ID: id}, nil
}

func (m *mockDraftManager) Publish(ctx context.Context, id string) (*draft.PublishResult, error) {
	if m.publishFn != nil {
		return m.publishFn(ctx, id)
	}
	return nil, nil
}

func (m *mockDraftManager) Close(ctx context.Context, id string) error {
	if m.closeFn != nil {
		return m.closeFn(ctx, id)
	}
	return nil
}

// TestDraftHandler_Open は編集セッションの開始を検証する。ボディなしでは新規の下書きになる。
func TestDraftHandler_Open(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantArticleID string
	}{
		{"新規", "", ""},
		{"既存記事", `{"article_id":"art-9"}`, "art-9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			mgr := &mockDraftManager{
				beginFn: func(ctx context.Context, articleID string) (draft.State, error) {
					got = articleID
					return draft.State{ID: "draft-1", ArticleID: articleID}, nil
				},
			}
			h := NewDraftHandler(mgr)

			req := httptest.NewRequest(http.MethodPost, "/api/admin/drafts", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.Open(w, req)

			if w.Code != http.StatusCreated {
				t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
			}
			if got != tt.wantArticleID {
				t.Errorf("articleID = %q, want %q", got, tt.wantArticleID)
			}
		})
	}
}

// TestDraftHandler_Open_ArticleNotFound は存在しない記事の編集開始で404を返すことを検証する。
func TestDraftHandler_Open_ArticleNotFound(t *testing.T) {
	mgr := &mockDraftManager{
		beginFn: func(ctx context.Context, articleID string) (draft.State, error) {
			return draft.State{}, model.NewArticleNotFoundError(articleID)
		},
	}
	h := NewDraftHandler(mgr)

	w := httptest.NewRecorder()
	h.Open(w, httptest.NewRequest(http.MethodPost, "/api/admin/drafts", strings.NewReader(`{"article_id":"nada"}`)))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

// TestDraftHandler_Get_NotFound は存在しないセッションで404を返すことを検証する。
func TestDraftHandler_Get_NotFound(t *testing.T) {
	mgr := &mockDraftManager{
		stateFn: func(id string) (draft.State, error) {
			return draft.State{}, model.NewDraftNotFoundError(id)
		},
	}
	h := NewDraftHandler(mgr)

	w := httptest.NewRecorder()
	h.Get(w, withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "x"))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeDraftNotFound {
		t.Errorf("code = %q", body["code"])
	}
}

// TestDraftHandler_ApplyOps_DecodesOps は編集操作がデコードされてマネージャーに渡ることを検証する。
func TestDraftHandler_ApplyOps_DecodesOps(t *testing.T) {
	var gotID string
	var gotOps []draft.Op
	mgr := &mockDraftManager{
		applyFn: func(ctx context.Context, id string, ops []draft.Op) (draft.State, error) {
			gotID, gotOps = id, ops
			return draft.State{ID: id, Markdown: "Olá", WordCount: 1, ReadTime: "1 min"}, nil
		},
	}
	h := NewDraftHandler(mgr)

	body := `{"ops":[{"type":"insert_text","text":"Olá"},{"type":"paste_image","mime":"image/png","data":"iVBORw0KGgo="}]}`
	req := withChiURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), "id", "draft-1")
	w := httptest.NewRecorder()
	h.ApplyOps(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if gotID != "draft-1" || len(gotOps) != 2 {
		t.Fatalf("unexpected call: id=%q ops=%+v", gotID, gotOps)
	}
	if gotOps[0].Type != draft.OpInsertText || gotOps[0].Text != "Olá" {
		t.Errorf("ops[0] = %+v", gotOps[0])
	}
	if gotOps[1].Type != draft.OpPasteImage || len(gotOps[1].Data) != 8 {
		t.Errorf("ops[1] = %+v", gotOps[1])
	}

	var st draft.State
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.WordCount != 1 || st.ReadTime != "1 min" {
		t.Errorf("state = %+v", st)
	}
}

// TestDraftHandler_ApplyOps_Errors は検証エラーとSSRF拒否のステータスを検証する。
func TestDraftHandler_ApplyOps_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"不明な操作", model.NewValidationError("type", "Operação desconhecida"), http.StatusUnprocessableEntity},
		{"SSRF", model.NewSSRFBlockedError(), http.StatusForbidden},
		{"画像なし", model.NewImageUnavailableError("404"), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := &mockDraftManager{
				applyFn: func(ctx context.Context, id string, ops []draft.Op) (draft.State, error) {
					return draft.State{}, tt.err
				},
			}
			h := NewDraftHandler(mgr)
			req := withChiURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"ops":[{"type":"x"}]}`)), "id", "draft-1")
			w := httptest.NewRecorder()
			h.ApplyOps(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

// TestDraftHandler_UpdateMeta はメタ情報がデコードされて渡ることを検証する。
func TestDraftHandler_UpdateMeta(t *testing.T) {
	var got draft.Meta
	mgr := &mockDraftManager{
		updateMetaFn: func(ctx context.Context, id string, meta draft.Meta) (draft.State, error) {
			got = meta
			return draft.State{ID: id, Meta: meta}, nil
		},
	}
	h := NewDraftHandler(mgr)

	body := `{"title":"Título","subtitle":"Sub","author":"Ana","category":"Tutorial","tags":["go"],"featured":true}`
	req := withChiURLParam(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body)), "id", "draft-1")
	w := httptest.NewRecorder()
	h.UpdateMeta(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got.Title != "Título" || got.Category != model.CategoryTutorial || !got.Featured || len(got.Tags) != 1 {
		t.Errorf("meta = %+v", got)
	}
}

// TestDraftHandler_Save は手動保存の結果と保存中の競合を検証する。
func TestDraftHandler_Save(t *testing.T) {
	mgr := &mockDraftManager{
		saveFn: func(ctx context.Context, id string) (draft.State, error) {
			if id == "busy" {
				return draft.State{}, model.NewSaveInFlightError()
			}
			return draft.State{ID: id, ArticleID: "art-1", Save: autosave.Status{State: autosave.StateClean}}, nil
		},
	}
	h := NewDraftHandler(mgr)

	w := httptest.NewRecorder()
	h.Save(w, withChiURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "id", "draft-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var st draft.State
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.ArticleID != "art-1" || st.Save.State != autosave.StateClean {
		t.Errorf("state = %+v", st)
	}

	w = httptest.NewRecorder()
	h.Save(w, withChiURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "id", "busy"))
	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", w.Code)
	}
}

// TestDraftHandler_Publish は公開成功時に記事とリダイレクト先を返すことを検証する。
func TestDraftHandler_Publish(t *testing.T) {
	mgr := &mockDraftManager{
		publishFn: func(ctx context.Context, id string) (*draft.PublishResult, error) {
			return &draft.PublishResult{Article: sampleArticle(), Redirect: draft.PublishRedirect}, nil
		},
	}
	h := NewDraftHandler(mgr)

	w := httptest.NewRecorder()
	h.Publish(w, withChiURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "id", "draft-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp publishResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Redirect != "/admin" || resp.Article.Slug != "ola-mundo" || !resp.Article.Published {
		t.Errorf("unexpected response: %+v", resp)
	}
}

// TestDraftHandler_Publish_ValidationError は公開時の検証エラーが対象フィールド付きで返ることを検証する。
func TestDraftHandler_Publish_ValidationError(t *testing.T) {
	mgr := &mockDraftManager{
		publishFn: func(ctx context.Context, id string) (*draft.PublishResult, error) {
			return nil, model.NewValidationError("category", "Selecione uma categoria")
		},
	}
	h := NewDraftHandler(mgr)

	w := httptest.NewRecorder()
	h.Publish(w, withChiURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "id", "draft-1"))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", w.Code)
	}
	body := parseAPIErrorResponse(t, w)
	if body["field"] != "category" || body["message"] != "Selecione uma categoria" {
		t.Errorf("unexpected error body: %v", body)
	}
}

// TestDraftHandler_Close はセッションの破棄で204を返すことを検証する。
func TestDraftHandler_Close(t *testing.T) {
	var closed string
	mgr := &mockDraftManager{
		closeFn: func(ctx context.Context, id string) error {
			closed = id
			return nil
		},
	}
	h := NewDraftHandler(mgr)

	w := httptest.NewRecorder()
	h.Close(w, withChiURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "id", "draft-1"))

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if closed != "draft-1" {
		t.Errorf("closed = %q", closed)
	}
}
