package draft

import (
	"context"
	"strings"

	"github.com/hitoshi/gemblog/internal/document"
	"github.com/hitoshi/gemblog/internal/editor"
	"github.com/hitoshi/gemblog/internal/media"
	"github.com/hitoshi/gemblog/internal/model"
)

// OpType はクライアントから送られる編集操作の種類。
type OpType string

// 編集操作の定義。
const (
	OpSelect       OpType = "select"
	OpInsertText   OpType = "insert_text"
	OpKey          OpType = "key"
	OpFormat       OpType = "format"
	OpBlock        OpType = "block"
	OpList         OpType = "list"
	OpDivider      OpType = "divider"
	OpImage        OpType = "image"
	OpCaption      OpType = "caption"
	OpPasteImage   OpType = "paste_image"
	OpCommand      OpType = "command"
	OpLoadHTML     OpType = "load_html"
	OpLoadMarkdown OpType = "load_markdown"
)

// Op は1つの編集操作。Typeに応じて使うフィールドが決まる。
type Op struct {
	Type      OpType            `json:"type"`
	Selection *editor.Selection `json:"selection,omitempty"`
	Rect      *editor.Rect      `json:"rect,omitempty"`
	Text      string            `json:"text,omitempty"`
	Key       editor.Key        `json:"key,omitempty"`
	Style     document.Style    `json:"style,omitempty"`
	Block     string            `json:"block,omitempty"`
	Ordered   bool              `json:"ordered,omitempty"`
	Src       string            `json:"src,omitempty"`
	Alt       string            `json:"alt,omitempty"`
	Index     int               `json:"index,omitempty"`
	Caption   string            `json:"caption,omitempty"`
	Mime      string            `json:"mime,omitempty"`
	Data      []byte            `json:"data,omitempty"` // JSONではbase64
	Command   editor.Command    `json:"command,omitempty"`
	HTML      string            `json:"html,omitempty"`
	Markdown  string            `json:"markdown,omitempty"`
}

// ImageProber は画像URLを確認する。
type ImageProber interface {
	Probe(ctx context.Context, rawURL string) (*media.ImageInfo, error)
}

// prepare はロックを取る前に画像を検証し、貼り付け画像をdata URLに変換する。
// ネットワークを伴う確認をセッションのロックの外で行うため、操作列を書き換えて返す。
func (m *Manager) prepare(ctx context.Context, ops []Op) ([]Op, error) {
	out := make([]Op, len(ops))
	for i, op := range ops {
		switch op.Type {
		case OpImage:
			if err := m.checkImage(ctx, op.Src); err != nil {
				return nil, err
			}
		case OpCommand:
			if op.Command == editor.CommandImage && op.Src != "" {
				if err := m.checkImage(ctx, op.Src); err != nil {
					return nil, err
				}
			}
		case OpPasteImage:
			src, err := media.DataURL(op.Mime, op.Data, m.cfg.MaxPasteBytes)
			if err != nil {
				return nil, err
			}
			op.Src, op.Data = src, nil
		}
		out[i] = op
	}
	return out, nil
}

// checkImage は画像URLを検証する。貼り付け済みのdata URLは確認しない。
func (m *Manager) checkImage(ctx context.Context, src string) error {
	src = strings.TrimSpace(src)
	if src == "" {
		return model.NewValidationError("src", "Informe a URL da imagem")
	}
	if strings.HasPrefix(src, "data:image/") {
		return nil
	}
	if m.prober == nil {
		return nil
	}
	_, err := m.prober.Probe(ctx, src)
	return err
}
