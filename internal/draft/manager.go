package draft

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gemblog/internal/autosave"
	"github.com/hitoshi/gemblog/internal/document"
	"github.com/hitoshi/gemblog/internal/editor"
	"github.com/hitoshi/gemblog/internal/media"
	"github.com/hitoshi/gemblog/internal/metrics"
	"github.com/hitoshi/gemblog/internal/model"
)

// ArticleWriter は下書きの保存先。article.Serviceが満たす。
type ArticleWriter interface {
	GetByID(ctx context.Context, id string) (*model.Article, error)
	Create(ctx context.Context, in model.ArticleInput) (*model.Article, error)
	Update(ctx context.Context, id string, patch model.ArticlePatch) (*model.Article, error)
}

// Config は編集セッションの設定。
type Config struct {
	Debounce      time.Duration // 0の場合はautosave.DefaultDebounce
	MaxPasteBytes int           // 0の場合はmedia.DefaultMaxPasteSize
}

// Manager は稼働中の編集セッションを保持する。
type Manager struct {
	writer  ArticleWriter
	prober  ImageProber
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	cfg     Config

	now       func() time.Time
	newID     func() string
	afterFunc autosave.AfterFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager はManagerを生成する。proberとcollectorはnilでもよい。
func NewManager(writer ArticleWriter, prober ImageProber, collector metrics.MetricsCollector, cfg Config, logger *slog.Logger) *Manager {
	if cfg.MaxPasteBytes <= 0 {
		cfg.MaxPasteBytes = media.DefaultMaxPasteSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		writer:   writer,
		prober:   prober,
		metrics:  collector,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
		sessions: make(map[string]*Session),
	}
}

// Open は編集セッションを開始する。
// articleIDが指定された場合は既存の記事から下書きを復元し、記事IDを確定済みにする。
func (m *Manager) Open(ctx context.Context, articleID string) (*Session, error) {
	var d Draft
	if articleID != "" {
		a, err := m.writer.GetByID(ctx, articleID)
		if err != nil {
			return nil, err
		}
		d = fromArticle(a)
	} else {
		d.Document = document.New()
	}

	s := &Session{
		id:         m.newID(),
		writer:     m.writer,
		metrics:    m.metrics,
		logger:     m.logger,
		now:        m.now,
		meta:       d.Meta,
		articleID:  d.ArticleID,
		sel:        editor.NewStaticSelection(),
		lastActive: m.now(),
	}
	if s.meta.Tags == nil {
		s.meta.Tags = []string{}
	}

	opts := []autosave.Option{
		autosave.WithDebounce(m.cfg.Debounce),
		autosave.WithNow(m.now),
	}
	if m.afterFunc != nil {
		opts = append(opts, autosave.WithAfterFunc(m.afterFunc))
	}
	s.saver = autosave.New(s.autosave, opts...)
	s.ed = editor.New(d.Document, s.sel,
		editor.WithOnChange(s.markEdited),
		editor.WithImageAlt(func() string { return strings.TrimSpace(s.meta.Title) }),
	)

	m.mu.Lock()
	m.sessions[s.id] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.setActive(n)

	m.logger.Info("編集セッションを開始しました",
		slog.String("session_id", s.id),
		slog.String("article_id", articleID),
	)
	return s, nil
}

// Begin はセッションを開始し、その状態を返す。
func (m *Manager) Begin(ctx context.Context, articleID string) (State, error) {
	s, err := m.Open(ctx, articleID)
	if err != nil {
		return State{}, err
	}
	return s.State(), nil
}

// Get はセッションを取得する。存在しない場合はDRAFT_NOT_FOUNDを返す。
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, model.NewDraftNotFoundError(id)
	}
	return s, nil
}

// State はセッションの状態を返す。
func (m *Manager) State(id string) (State, error) {
	s, err := m.Get(id)
	if err != nil {
		return State{}, err
	}
	return s.State(), nil
}

// Apply は編集操作列を適用する。画像は適用前に検証し、1つでも失敗した場合は何も適用しない。
func (m *Manager) Apply(ctx context.Context, id string, ops []Op) (State, error) {
	s, err := m.Get(id)
	if err != nil {
		return State{}, err
	}
	ops, err = m.prepare(ctx, ops)
	if err != nil {
		return State{}, err
	}
	return s.apply(ops)
}

// UpdateMeta はメタ情報を更新する。カバー画像が変わった場合はURLを確認する。
func (m *Manager) UpdateMeta(ctx context.Context, id string, meta Meta) (State, error) {
	s, err := m.Get(id)
	if err != nil {
		return State{}, err
	}
	meta.CoverImage = strings.TrimSpace(meta.CoverImage)
	if meta.CoverImage != "" && meta.CoverImage != s.Draft().CoverImage {
		if err := m.checkImage(ctx, meta.CoverImage); err != nil {
			return State{}, err
		}
	}
	if err := s.UpdateMeta(meta); err != nil {
		return State{}, err
	}
	return s.State(), nil
}

// Save は手動保存する。
func (m *Manager) Save(ctx context.Context, id string) (State, error) {
	s, err := m.Get(id)
	if err != nil {
		return State{}, err
	}
	return s.Save(ctx)
}

// Publish は下書きを公開し、成功した場合はセッションを終了する。
func (m *Manager) Publish(ctx context.Context, id string) (*PublishResult, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	res, err := s.Publish(ctx)
	if err != nil {
		return nil, err
	}
	m.remove(id)
	return res, nil
}

// Close はセッションを破棄する。未保存の変更は保存しない。
// 実行中の保存がある場合は完了を待つ。
func (m *Manager) Close(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.close()
	m.remove(id)
	if err := s.saver.Wait(ctx); err != nil {
		return err
	}
	m.logger.Info("編集セッションを終了しました", slog.String("session_id", id))
	return nil
}

// ReapIdle はmaxIdle以上操作のないセッションを終了し、終了した件数を返す。
// 未保存の変更がある下書きは終了前に保存を試みる。
func (m *Manager) ReapIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*Session
	for _, s := range m.sessions {
		if s.idleSince(cutoff) {
			idle = append(idle, s)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.finalSave(ctx, s)
		s.close()
		m.remove(s.id)
		m.logger.Info("アイドル状態の編集セッションを終了しました", slog.String("session_id", s.id))
	}
	return len(idle)
}

// Shutdown は全てのセッションを保存して終了する。
func (m *Manager) Shutdown(ctx context.Context) {
	m.ReapIdle(ctx, -time.Hour)
}

// Count は稼働中のセッション数を返す。
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// finalSave は未保存の変更があれば保存する。失敗はログに記録するのみ。
func (m *Manager) finalSave(ctx context.Context, s *Session) {
	if err := s.saver.Wait(ctx); err != nil {
		return
	}
	if s.saver.Status().State != autosave.StateDirty {
		return
	}
	err := s.saver.SaveNow(ctx)
	if err != nil && !errors.Is(err, autosave.ErrSaveInFlight) {
		m.logger.Warn("終了前の下書き保存に失敗しました",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	m.setActive(n)
}

func (m *Manager) setActive(n int) {
	if m.metrics != nil {
		m.metrics.SetActiveSessions(n)
	}
}
