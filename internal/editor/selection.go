package editor

import (
	"sync"

	"github.com/hitoshi/gemblog/internal/document"
)

// Selection は文書内の選択範囲。AnchorとFocusが同じ場合はキャレットを表す。
type Selection struct {
	Anchor document.Position `json:"anchor"`
	Focus  document.Position `json:"focus"`
}

// Caret は位置pに折り畳まれた選択を生成する。
func Caret(p document.Position) Selection {
	return Selection{Anchor: p, Focus: p}
}

// Collapsed は選択がキャレットかどうかを返す。
func (s Selection) Collapsed() bool {
	return s.Anchor == s.Focus
}

// Range は選択範囲を文書順に並べた開始位置と終了位置を返す。
func (s Selection) Range() (document.Position, document.Position) {
	return document.Order(s.Anchor, s.Focus)
}

// Rect は画面上の矩形。クライアントが報告した選択範囲の外接矩形に使う。
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SelectionProvider は現在の選択を提供するケイパビリティ。
// エディタは選択の取得元（ブラウザ、テスト、API）を知らずに動作する。
type SelectionProvider interface {
	// Selection は現在の選択を返す。選択がない場合はfalseを返す。
	Selection() (Selection, bool)
	// SetSelection は選択を置き換える。
	SetSelection(sel Selection)
	// Bounds は現在の選択の外接矩形を返す。不明な場合はfalseを返す。
	Bounds() (Rect, bool)
}

// StaticSelection はクライアントから報告された選択を保持するSelectionProvider。
type StaticSelection struct {
	mu   sync.Mutex
	sel  *Selection
	rect *Rect
}

// NewStaticSelection は選択なしのStaticSelectionを生成する。
func NewStaticSelection() *StaticSelection {
	return &StaticSelection{}
}

// Report はクライアントが報告した選択と外接矩形を記録する。
func (s *StaticSelection) Report(sel Selection, rect *Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = &sel
	if rect != nil {
		r := *rect
		s.rect = &r
	} else {
		s.rect = nil
	}
}

// Clear は選択を破棄する。
func (s *StaticSelection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = nil
	s.rect = nil
}

// Selection は現在の選択を返す。
func (s *StaticSelection) Selection() (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sel == nil {
		return Selection{}, false
	}
	return *s.sel, true
}

// SetSelection は選択を置き換える。エディタ側で動かした選択の矩形は不明になる。
func (s *StaticSelection) SetSelection(sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = &sel
	s.rect = nil
}

// SelectionState はStaticSelectionの保存用の状態。
type SelectionState struct {
	sel  *Selection
	rect *Rect
}

// Save は現在の選択と外接矩形を保存する。
func (s *StaticSelection) Save() SelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SelectionState{sel: s.sel, rect: s.rect}
}

// Load はSaveで保存した状態に戻す。
func (s *StaticSelection) Load(st SelectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = st.sel
	s.rect = st.rect
}

// Bounds は最後に報告された外接矩形を返す。
func (s *StaticSelection) Bounds() (Rect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rect == nil {
		return Rect{}, false
	}
	return *s.rect, true
}
