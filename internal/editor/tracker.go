package editor

import "github.com/hitoshi/gemblog/internal/document"

// SelectionKind は選択の状態。
type SelectionKind string

// 選択状態の定義。
const (
	SelectionNone  SelectionKind = "none"
	SelectionCaret SelectionKind = "caret"
	SelectionRange SelectionKind = "range"
)

// 書式ツールバーの配置。選択範囲の上に中央揃えで表示する。
const (
	toolbarOffsetTop = 44
	toolbarWidth     = 160
)

// Toolbar はインライン書式ツールバーの表示状態。
type Toolbar struct {
	Visible bool    `json:"visible"`
	Top     float64 `json:"top"`
	Left    float64 `json:"left"`
}

// TrackerState は選択とキャレットの状態のスナップショット。
type TrackerState struct {
	Kind      SelectionKind `json:"kind"`
	Selection *Selection    `json:"selection,omitempty"`
	Block     int           `json:"block"`
	LineText  string        `json:"line_text"`
	Toolbar   Toolbar       `json:"toolbar"`
}

// Tracker は選択の状態を追跡し、ツールバー表示とショートカット判定に必要な情報を提供する。
// 選択がないことはエラーではなく、SelectionNoneとして扱う。
type Tracker struct {
	provider SelectionProvider
}

// NewTracker はTrackerを生成する。
func NewTracker(provider SelectionProvider) *Tracker {
	return &Tracker{provider: provider}
}

// Snapshot は文書docに対する現在の選択状態を返す。
// 選択位置が文書の範囲外を指している場合は範囲内に丸める。
func (t *Tracker) Snapshot(doc document.Document) TrackerState {
	sel, ok := t.provider.Selection()
	if !ok {
		return TrackerState{Kind: SelectionNone, Block: -1}
	}
	sel = Selection{Anchor: doc.Clamp(sel.Anchor), Focus: doc.Clamp(sel.Focus)}

	state := TrackerState{Selection: &sel, Block: sel.Focus.Block}
	if sel.Collapsed() {
		state.Kind = SelectionCaret
		_, _, state.LineText = doc.LineAt(sel.Focus)
		return state
	}

	state.Kind = SelectionRange
	start, end := sel.Range()
	if doc.TextRange(start, end) == "" {
		return state
	}
	if rect, ok := t.provider.Bounds(); ok {
		state.Toolbar = Toolbar{
			Visible: true,
			Top:     rect.Top - toolbarOffsetTop,
			Left:    rect.Left + rect.Width/2 - toolbarWidth/2,
		}
	}
	return state
}
