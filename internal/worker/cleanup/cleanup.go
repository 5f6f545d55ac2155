// Package cleanup は期限切れデータの定期削除ジョブを提供する。
// 有効期限を過ぎた管理者セッションを削除し、一定時間操作のない編集セッションを
// 保存してから破棄する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultIdleTimeout は編集セッションを破棄するまでの既定の無操作時間。
const DefaultIdleTimeout = 30 * time.Minute

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// IdleReaper は無操作の編集セッションを保存して破棄する。draft.Managerが満たす。
type IdleReaper interface {
	ReapIdle(ctx context.Context, maxIdle time.Duration) int
}

// Result は1回の実行結果。
type Result struct {
	ExpiredSessions int64
	ReapedDrafts    int
}

// CleanupJob は期限切れセッションと放置された編集セッションの削除ジョブ。
// 冪等な削除処理を保証する。
type CleanupJob struct {
	db          Executor
	reaper      IdleReaper
	logger      *slog.Logger
	IdleTimeout time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
// reaperがnilの場合は編集セッションを扱わない（cleanupサブコマンド用）。
func NewCleanupJob(db Executor, reaper IdleReaper, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:          db,
		reaper:      reaper,
		logger:      logger,
		IdleTimeout: DefaultIdleTimeout,
	}
}

// Run は期限切れの管理者セッションを削除し、無操作の編集セッションを破棄する。
// 冪等: 削除対象がない場合でもエラーにならない。
// データベースの削除に失敗した場合も編集セッションの破棄は行う。
func (j *CleanupJob) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result

	if j.reaper != nil {
		res.ReapedDrafts = j.reaper.ReapIdle(ctx, j.IdleTimeout)
	}

	query := `DELETE FROM sessions WHERE expires_at < now()`
	result, err := j.db.ExecContext(ctx, query)
	if err != nil {
		j.logger.Error("セッションクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return res, fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	res.ExpiredSessions, err = result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return res, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("expired_sessions", res.ExpiredSessions),
		slog.Int("reaped_drafts", res.ReapedDrafts),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return res, nil
}

// Start はintervalごとにRunを実行する。起動直後に1回実行し、ctxが取り消されると戻る。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CleanupJob) runOnce(ctx context.Context) {
	// エラーはRun内でログ出力済み
	_, _ = j.Run(ctx)
}
