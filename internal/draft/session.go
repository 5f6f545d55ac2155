package draft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/gemblog/internal/autosave"
	"github.com/hitoshi/gemblog/internal/document"
	"github.com/hitoshi/gemblog/internal/editor"
	"github.com/hitoshi/gemblog/internal/htmlconv"
	"github.com/hitoshi/gemblog/internal/markdown"
	"github.com/hitoshi/gemblog/internal/metrics"
	"github.com/hitoshi/gemblog/internal/model"
	"github.com/hitoshi/gemblog/internal/readtime"
)

// saveTimeout は自動保存1回あたりのタイムアウト。
const saveTimeout = 10 * time.Second

// PublishRedirect は公開成功後に遷移する管理画面のパス。
const PublishRedirect = "/admin"

// State はクライアントに返すセッションの状態。
type State struct {
	ID            string              `json:"id"`
	ArticleID     string              `json:"article_id,omitempty"`
	Meta          Meta                `json:"meta"`
	Document      document.Document   `json:"document"`
	Markdown      string              `json:"markdown"`
	HTML          string              `json:"html"`
	Save          autosave.Status     `json:"save"`
	WordCount     int                 `json:"word_count"`
	ReadTime      string              `json:"read_time"`
	Selection     editor.TrackerState `json:"selection"`
	SlashMenuOpen bool                `json:"slash_menu_open"`
	SlashMenu     []editor.MenuItem   `json:"slash_menu,omitempty"`
}

// PublishResult は公開の結果。
type PublishResult struct {
	Article  *model.Article `json:"article"`
	Redirect string         `json:"redirect"`
}

// Session は1つの下書きの編集セッション。
// エディタと下書きへの操作はmuで直列化する。
type Session struct {
	id      string
	writer  ArticleWriter
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	meta       Meta
	articleID  string
	sel        *editor.StaticSelection
	ed         *editor.Editor
	lastActive time.Time
	closed     bool
	// edited はapply中にエディタが文書を変更したかどうか。
	edited bool

	saver *autosave.Coordinator
}

// ID はセッションIDを返す。
func (s *Session) ID() string {
	return s.id
}

// Draft は現在の下書きのスナップショットを返す。
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftLocked()
}

func (s *Session) draftLocked() Draft {
	meta := s.meta
	meta.Tags = append([]string(nil), s.meta.Tags...)
	return Draft{Meta: meta, ArticleID: s.articleID, Document: s.ed.Document()}
}

// State は現在の状態を返す。
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	d := s.draftLocked()
	rt := readtime.ForDocument(d.Document)
	st := State{
		ID:            s.id,
		ArticleID:     d.ArticleID,
		Meta:          d.Meta,
		Document:      d.Document,
		Markdown:      markdown.ToMarkdown(d.Document),
		HTML:          htmlconv.ToHTML(d.Document),
		Save:          s.saver.Status(),
		WordCount:     rt.Words,
		ReadTime:      rt.Label,
		Selection:     s.ed.State(),
		SlashMenuOpen: s.ed.SlashMenuOpen(),
	}
	if st.SlashMenuOpen {
		st.SlashMenu = editor.SlashMenu()
	}
	return st
}

// UpdateMeta はメタ情報を置き換えて変更として扱う。
func (s *Session) UpdateMeta(meta Meta) error {
	if meta.Category != "" && !meta.Category.Valid() {
		return model.NewValidationError("category", "Selecione uma categoria válida")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.NewDraftNotFoundError(s.id)
	}
	meta.Tags = cleanTags(meta.Tags)
	s.meta = meta
	s.lastActive = s.now()
	s.mu.Unlock()

	s.saver.MarkDirty()
	return nil
}

// apply は操作列をまとめて適用する。途中の操作が失敗した場合は
// 適用前の状態に戻し、下書きを変更済みにしない。
func (s *Session) apply(ops []Op) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, model.NewDraftNotFoundError(s.id)
	}
	s.lastActive = s.now()

	snap, selSnap := s.ed.Snapshot(), s.sel.Save()
	s.edited = false
	for i, op := range ops {
		if err := s.applyLocked(op); err != nil {
			s.ed.Restore(snap)
			s.sel.Load(selSnap)
			s.edited = false
			return State{}, fmt.Errorf("ops[%d]: %w", i, err)
		}
	}
	if s.edited {
		s.edited = false
		s.saver.MarkDirty()
	}
	return s.stateLocked(), nil
}

// markEdited はエディタの変更通知を受ける。呼び出し時はmuを保持している。
func (s *Session) markEdited() {
	s.edited = true
}

func (s *Session) applyLocked(op Op) error {
	switch op.Type {
	case OpSelect:
		if op.Selection == nil {
			s.sel.Clear()
			return nil
		}
		sel := *op.Selection
		s.ed.Select(sel)
		if got, ok := s.sel.Selection(); ok {
			s.sel.Report(got, op.Rect)
		}
	case OpInsertText:
		s.ed.InsertText(op.Text)
	case OpKey:
		s.ed.HandleKey(op.Key)
	case OpFormat:
		s.ed.ApplyInline(op.Style)
	case OpBlock:
		bt, err := editor.ParseBlockType(op.Block)
		if err != nil {
			return model.NewValidationError("block", "Tipo de bloco desconhecido")
		}
		s.ed.TransformBlock(bt)
	case OpList:
		s.ed.MakeList(op.Ordered)
	case OpDivider:
		s.ed.InsertDivider()
	case OpImage, OpPasteImage:
		s.ed.InsertImage(op.Src, op.Alt)
	case OpCaption:
		if !s.ed.SetCaption(op.Index, op.Caption) {
			return model.NewValidationError("index", "O bloco indicado não é uma imagem")
		}
	case OpCommand:
		if err := s.ed.ExecCommand(op.Command, op.Src); err != nil {
			return model.NewValidationError("command", err.Error())
		}
	case OpLoadHTML:
		s.ed.SetDocument(htmlconv.FromHTML(op.HTML))
	case OpLoadMarkdown:
		s.ed.SetDocument(markdown.FromMarkdown(op.Markdown))
	default:
		return model.NewValidationError("type", fmt.Sprintf("Operação desconhecida: %s", op.Type))
	}
	return nil
}

// Save はデバウンスを待たずに保存する。
func (s *Session) Save(ctx context.Context) (State, error) {
	if err := s.saver.SaveNow(ctx); err != nil {
		if errors.Is(err, autosave.ErrSaveInFlight) {
			return State{}, model.NewSaveInFlightError()
		}
		return State{}, toAPIError(err)
	}
	return s.State(), nil
}

// Publish は下書きを検証し、公開状態で保存する。
// 検証に失敗した場合は永続化層を呼び出さない。
func (s *Session) Publish(ctx context.Context) (*PublishResult, error) {
	if err := s.Draft().Validate(); err != nil {
		return nil, err
	}

	var published *model.Article
	err := s.saver.Do(ctx, func(ctx context.Context) error {
		d := s.Draft()
		if err := d.Validate(); err != nil {
			return err
		}
		a, err := s.write(ctx, d, true)
		if err != nil {
			return err
		}
		published = a
		return nil
	})
	if err != nil {
		s.recordPublish(metrics.ResultFailure)
		if !model.IsValidation(err) {
			s.logger.Warn("記事の公開に失敗しました",
				slog.String("session_id", s.id),
				slog.String("error", err.Error()),
			)
		}
		return nil, toAPIError(err)
	}

	s.recordPublish(metrics.ResultSuccess)
	s.logger.Info("記事を公開しました",
		slog.String("session_id", s.id),
		slog.String("article_id", published.ID),
		slog.String("slug", published.Slug),
	)
	s.close()
	return &PublishResult{Article: published, Redirect: PublishRedirect}, nil
}

// autosave はコーディネータから呼ばれる保存処理。
func (s *Session) autosave(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	start := s.now()
	_, err := s.write(ctx, s.Draft(), false)
	if s.metrics != nil {
		s.metrics.RecordSaveLatency(s.now().Sub(start))
	}
	if err != nil {
		s.recordAutosave(metrics.ResultFailure)
		s.logger.Warn("下書きの自動保存に失敗しました",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()),
		)
		return err
	}
	s.recordAutosave(metrics.ResultSuccess)
	return nil
}

// write は下書きを記事として保存する。
// 記事IDがなければ作成して記事IDを確定し、以降は更新する。
func (s *Session) write(ctx context.Context, d Draft, publish bool) (*model.Article, error) {
	if d.ArticleID != "" {
		return s.writer.Update(ctx, d.ArticleID, d.Patch(publish))
	}

	a, err := s.writer.Create(ctx, d.Input(publish))
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.articleID = a.ID
	s.mu.Unlock()
	return a, nil
}

// close はセッションを終了する。実行中の保存は中断しない。
func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.saver.Close()
}

func (s *Session) idleSince(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.lastActive.After(t)
}

func (s *Session) recordAutosave(result string) {
	if s.metrics != nil {
		s.metrics.RecordAutosave(result)
	}
}

func (s *Session) recordPublish(result string) {
	if s.metrics != nil {
		s.metrics.RecordPublish(result)
	}
}

// toAPIError は保存エラーをAPIエラーに変換する。
func toAPIError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return model.NewPersistenceError(err)
}

func cleanTags(tags []string) []string {
	out := []string{}
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
