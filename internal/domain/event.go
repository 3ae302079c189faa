package domain

import (
	"sort"
	"time"
)

// UntitledEvent 件名が空のイベントに表示するプレースホルダー
const UntitledEvent = "未命名事件"

// Event カレンダーイベントのドメインエンティティ
// StartTime / EndTime は常に対象タイムゾーンで保持する
type Event struct {
	ID        string
	Title     string
	StartTime time.Time
	EndTime   time.Time
	IsAllDay  bool
	Location  string
}

// SortByStart 開始時刻の昇順で並べ替えたコピーを返す
func SortByStart(events []Event) []Event {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})
	return sorted
}
