package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// TickInterval Run が期限到来をチェックする間隔
const TickInterval = time.Second

// ErrFatal これをラップしたエラーをジョブが返すとループを停止する
var ErrFatal = errors.New("致命的なエラー")

// JobFunc スケジュールされた処理
// 次回の実行時刻を返す。ゼロ値の場合は再登録しない
type JobFunc func(ctx context.Context, now time.Time) (time.Time, error)

type entry struct {
	fireAt time.Time
	seq    uint64
	name   string
	fn     JobFunc
}

// entryHeap fireAt 昇順、同時刻は登録順
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].fireAt.Equal(h[j].fireAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].fireAt.Before(h[j].fireAt)
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Loop 単一ゴルーチンで動くタイマーループ
// Schedule と RunPending は同じゴルーチンから呼び出すこと
type Loop struct {
	entries entryHeap
	seq     uint64
	clock   func() time.Time
	logger  *slog.Logger
}

// New ループを作成
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		clock:  time.Now,
		logger: logger,
	}
}

// Schedule ジョブを at に登録
func (l *Loop) Schedule(name string, at time.Time, fn JobFunc) {
	l.seq++
	heap.Push(&l.entries, &entry{fireAt: at, seq: l.seq, name: name, fn: fn})
	l.logger.Debug("ジョブを登録しました", "job", name, "at", at)
}

// Len 登録済みのジョブ数
func (l *Loop) Len() int {
	return len(l.entries)
}

// NextFire 直近の実行予定時刻
func (l *Loop) NextFire() (time.Time, bool) {
	if len(l.entries) == 0 {
		return time.Time{}, false
	}
	return l.entries[0].fireAt, true
}

// RunPending now までに期限が来たジョブを実行順に処理
// ErrFatal をラップしたエラーが返った時点で中断してそのエラーを返す
func (l *Loop) RunPending(ctx context.Context, now time.Time) error {
	for len(l.entries) > 0 && !l.entries[0].fireAt.After(now) {
		if err := ctx.Err(); err != nil {
			return err
		}

		e := heap.Pop(&l.entries).(*entry)
		next, err := l.runJob(ctx, e, now)
		if err != nil {
			if errors.Is(err, ErrFatal) {
				l.logger.Error("致命的なエラーでジョブが失敗しました", "job", e.name, "err", err)
				return err
			}
			l.logger.Error("ジョブの実行に失敗しました", "job", e.name, "err", err)
		}

		if !next.IsZero() {
			l.Schedule(e.name, next, e.fn)
		}
	}
	return nil
}

// runJob パニックはエラーとして回収する
func (l *Loop) runJob(ctx context.Context, e *entry, now time.Time) (next time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			next = time.Time{}
			err = fmt.Errorf("ジョブ %s がパニックしました: %v", e.name, r)
		}
	}()
	return e.fn(ctx, now)
}

// Run ctx が終了するか致命的なエラーが出るまでループを回す
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		if err := l.RunPending(ctx, l.clock()); err != nil && ctx.Err() == nil {
			return err
		}

		select {
		case <-ctx.Done():
			l.logger.Info("スケジューラを停止します")
			return nil
		case <-ticker.C:
		}
	}
}

// CronSchedule 標準の5フィールドcron式をタイムゾーン付きで評価する
type CronSchedule struct {
	spec     string
	schedule cron.Schedule
	loc      *time.Location
}

// ParseCron cron式を解釈
func ParseCron(spec string, loc *time.Location) (*CronSchedule, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("cron式の解析に失敗しました (%s): %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CronSchedule{spec: spec, schedule: schedule, loc: loc}, nil
}

// Next now より後の最初の実行時刻
func (c *CronSchedule) Next(now time.Time) time.Time {
	return c.schedule.Next(now.In(c.loc))
}

// String 元のcron式
func (c *CronSchedule) String() string {
	return c.spec
}
