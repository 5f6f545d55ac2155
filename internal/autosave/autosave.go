// Package autosave は下書きの自動保存を制御するコーディネータを提供する。
//
// 状態は clean → dirty → saving → clean と遷移する。変更が止まってから
// デバウンス間隔が経過すると保存を開始し、保存は常に1件までしか実行しない。
// 保存中に届いた変更は保存完了後に dirty へ戻すことで次の保存に引き継ぐ。
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultDebounce は変更から保存開始までの既定の待ち時間。
const DefaultDebounce = time.Second

// State は保存状態。
type State string

// 保存状態の定義。
const (
	StateClean  State = "clean"
	StateDirty  State = "dirty"
	StateSaving State = "saving"
)

// ErrSaveInFlight は保存中に手動保存を要求した場合のエラー。
var ErrSaveInFlight = errors.New("autosave: save already in flight")

// SaveFunc は保存処理。Coordinatorは同時に2つ以上のSaveFuncを実行しない。
type SaveFunc func(ctx context.Context) error

// Timer は停止可能なタイマー。*time.Timer が満たす。
type Timer interface {
	Stop() bool
}

// AfterFunc はdの経過後にfを呼び出すタイマーを開始する。
type AfterFunc func(d time.Duration, f func()) Timer

// Status は保存状態のスナップショット。
type Status struct {
	State     State     `json:"state"`
	SavedAt   time.Time `json:"saved_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	// Pending は保存中に新しい変更が届いたことを示す。
	Pending bool `json:"pending,omitempty"`
}

// Coordinator は1つの下書きの自動保存を制御する。
type Coordinator struct {
	save      SaveFunc
	debounce  time.Duration
	afterFunc AfterFunc
	now       func() time.Time
	onChange  func(Status)
	ctx       context.Context

	mu      sync.Mutex
	state   State
	pending bool
	timer   Timer
	gen     uint64
	savedAt time.Time
	lastErr error
	closed  bool
	idle    chan struct{}
}

// Option はCoordinatorの設定を変更する関数。
type Option func(*Coordinator)

// WithDebounce はデバウンス間隔を設定する。0以下の値は無視する。
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithAfterFunc はタイマーの生成方法を差し替える。テストで使う。
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Coordinator) { c.afterFunc = fn }
}

// WithNow は現在時刻の取得方法を差し替える。
func WithNow(fn func() time.Time) Option {
	return func(c *Coordinator) { c.now = fn }
}

// WithOnChange は状態が変化するたびに呼ばれるコールバックを設定する。
// コールバックはロックの外で呼ばれる。
func WithOnChange(fn func(Status)) Option {
	return func(c *Coordinator) { c.onChange = fn }
}

// WithContext は自動保存で使うコンテキストを設定する。
func WithContext(ctx context.Context) Option {
	return func(c *Coordinator) { c.ctx = ctx }
}

// New はCoordinatorを生成する。初期状態はclean。
func New(save SaveFunc, opts ...Option) *Coordinator {
	idle := make(chan struct{})
	close(idle)
	c := &Coordinator{
		save:     save,
		debounce: DefaultDebounce,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		now:   time.Now,
		ctx:   context.Background(),
		state: StateClean,
		idle:  idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status は現在の保存状態を返す。
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// MarkDirty は下書きが変更されたことを通知する。
// 保存中でなければdirtyに遷移してデバウンスタイマーを再始動する。
// 保存中の場合は変更を記録し、保存完了後にdirtyへ戻す。
func (c *Coordinator) MarkDirty() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.state == StateSaving {
		c.pending = true
	} else {
		c.state = StateDirty
		c.scheduleLocked()
	}
	st := c.statusLocked()
	c.mu.Unlock()
	c.notify(st)
}

// SaveNow はデバウンスを待たずに即座に保存する。
// 保存中の場合はErrSaveInFlightを返す。保存の結果をそのまま返す。
func (c *Coordinator) SaveNow(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateSaving {
		c.mu.Unlock()
		return ErrSaveInFlight
	}
	st := c.beginLocked()
	c.mu.Unlock()
	c.notify(st)

	err := c.save(ctx)
	c.finish(err)
	return err
}

// Do は実行中の保存が終わるのを待ってから、fnを排他的な保存として実行する。
// fnの実行中は自動保存を開始しない。公開処理のように、自動保存と同時に
// 実行されると記事が重複しうる処理に使う。
func (c *Coordinator) Do(ctx context.Context, fn SaveFunc) error {
	for {
		c.mu.Lock()
		if c.state != StateSaving {
			break
		}
		idle := c.idle
		c.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	st := c.beginLocked()
	c.mu.Unlock()
	c.notify(st)

	err := fn(ctx)
	c.finish(err)
	return err
}

// Wait は実行中の保存が完了するまで待つ。
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close はタイマーを停止し、以降の変更通知を無視する。
// 実行中の保存は中断しない。
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimerLocked()
}

// fire はデバウンスタイマーの満了時に呼ばれる。
// 古いタイマーからの呼び出しや、dirtyでない場合は何もしない。
func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.closed || c.state != StateDirty {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	st := c.beginLocked()
	ctx := c.ctx
	c.mu.Unlock()
	c.notify(st)

	go func() {
		c.finish(c.save(ctx))
	}()
}

// beginLocked はsaving状態に入る。呼び出し側でロックを保持すること。
func (c *Coordinator) beginLocked() Status {
	c.stopTimerLocked()
	c.state = StateSaving
	c.idle = make(chan struct{})
	return c.statusLocked()
}

// finish は保存の結果を反映する。
// 失敗時はdirtyに戻し、自動では再試行しない。
// 保存中に変更が届いていた場合は成否にかかわらずdirtyに戻して再度デバウンスする。
func (c *Coordinator) finish(err error) {
	c.mu.Lock()
	if err != nil {
		c.lastErr = err
		c.state = StateDirty
	} else {
		c.lastErr = nil
		c.savedAt = c.now()
		c.state = StateClean
	}
	if c.pending {
		c.pending = false
		c.state = StateDirty
		if !c.closed {
			c.scheduleLocked()
		}
	}
	close(c.idle)
	st := c.statusLocked()
	c.mu.Unlock()
	c.notify(st)
}

func (c *Coordinator) scheduleLocked() {
	c.stopTimerLocked()
	gen := c.gen
	c.timer = c.afterFunc(c.debounce, func() { c.fire(gen) })
}

// stopTimerLocked はタイマーを止め、世代を進めて満了済みのコールバックを無効にする。
func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (c *Coordinator) statusLocked() Status {
	st := Status{State: c.state, SavedAt: c.savedAt, Pending: c.pending}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

func (c *Coordinator) notify(st Status) {
	if c.onChange != nil {
		c.onChange(st)
	}
}
