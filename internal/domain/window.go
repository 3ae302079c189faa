package domain

import "time"

// Window 時間範囲 [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// StartOfDay loc における t の日付の 00:00
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// FetchWindow 取得範囲: 昨日 00:00 から明後日 00:00 まで
func FetchWindow(now time.Time, loc *time.Location) Window {
	today := StartOfDay(now, loc)
	return Window{
		Start: today.AddDate(0, 0, -1),
		End:   today.AddDate(0, 0, 2),
	}
}

// DayWindow 当日の範囲: 今日 00:00 から明日 00:00 まで
func DayWindow(now time.Time, loc *time.Location) Window {
	today := StartOfDay(now, loc)
	return Window{
		Start: today,
		End:   today.AddDate(0, 0, 1),
	}
}

// Overlaps イベントが範囲の端を含めて重なっているか
func (w Window) Overlaps(e Event) bool {
	return !e.StartTime.After(w.End) && !e.EndTime.Before(w.Start)
}

// FilterWindow 範囲と重なるイベントのみを残す（入力順を保持）
func FilterWindow(events []Event, w Window) []Event {
	filtered := make([]Event, 0, len(events))
	for _, e := range events {
		if w.Overlaps(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
