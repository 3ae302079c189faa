package usecase

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/k-negishi/calendar-digest-notifier/internal/domain"
)

// NoEventsMessage 当日の予定がない場合のメッセージ
const NoEventsMessage = "今天沒有行程安排。"

// ClassifyToday 当日に属する終日イベントと時刻指定イベントに分け、それぞれ開始順に並べる
//
// 終日イベントは開始日が今日と一致するもの、時刻指定イベントは
// [今日 00:00, 明日 00:00) と重なるものを当日とみなす。
func ClassifyToday(events []domain.Event, now time.Time, loc *time.Location) (allDay, timed []domain.Event) {
	day := domain.DayWindow(now, loc)
	for _, e := range events {
		if e.IsAllDay {
			if domain.StartOfDay(e.StartTime, loc).Equal(day.Start) {
				allDay = append(allDay, e)
			}
			continue
		}
		if e.StartTime.Before(day.End) && e.EndTime.After(day.Start) {
			timed = append(timed, e)
		}
	}
	return domain.SortByStart(allDay), domain.SortByStart(timed)
}

// BuildDigest 当日の予定通知メッセージを構築
func BuildDigest(events []domain.Event, now time.Time, loc *time.Location, style domain.MessageStyle) string {
	allDay, timed := ClassifyToday(events, now, loc)
	if len(allDay) == 0 && len(timed) == 0 {
		return NoEventsMessage
	}

	f := formatter{style: style}
	today := now.In(loc)

	var messageBuilder strings.Builder
	messageBuilder.WriteString(fmt.Sprintf("📅 %s\n\n",
		f.bold(fmt.Sprintf("行程提醒 (%s %s)", today.Format("2006-01-02"), gmtLabel(today)))))

	if len(allDay) > 0 {
		messageBuilder.WriteString(fmt.Sprintf("🌟 %s\n", f.bold("整天活動")))
		for _, event := range allDay {
			f.appendAllDayEvent(&messageBuilder, event, loc)
		}
	}

	if len(timed) > 0 {
		messageBuilder.WriteString(fmt.Sprintf("🕒 %s\n", f.bold("今日活動")))
		for _, event := range timed {
			f.appendTimedEvent(&messageBuilder, event, loc)
		}
	}

	return messageBuilder.String()
}

type formatter struct {
	style domain.MessageStyle
}

func (f formatter) text(s string) string {
	if f.style == domain.StyleHTML {
		return html.EscapeString(s)
	}
	return s
}

func (f formatter) bold(s string) string {
	if f.style == domain.StyleHTML {
		return "<b>" + html.EscapeString(s) + "</b>"
	}
	return s
}

// appendAllDayEvent 終了日は排他的なので 1 日引いて表示する
func (f formatter) appendAllDayEvent(builder *strings.Builder, event domain.Event, loc *time.Location) {
	start := domain.StartOfDay(event.StartTime, loc)
	last := domain.StartOfDay(event.EndTime, loc).AddDate(0, 0, -1)
	if last.Before(start) {
		last = start
	}

	title := f.text(titleOrPlaceholder(event.Title))
	if last.Equal(start) {
		builder.WriteString(fmt.Sprintf("📅 %s - %s\n", start.Format("2006-01-02"), title))
	} else {
		builder.WriteString(fmt.Sprintf("📅 %s 到 %s - %s\n", start.Format("2006-01-02"), last.Format("2006-01-02"), title))
	}
	f.appendLocation(builder, event)
	builder.WriteString("\n")
}

func (f formatter) appendTimedEvent(builder *strings.Builder, event domain.Event, loc *time.Location) {
	builder.WriteString(fmt.Sprintf("⏰ %s - %s\n",
		event.StartTime.In(loc).Format("15:04"),
		event.EndTime.In(loc).Format("15:04")))
	builder.WriteString(fmt.Sprintf("📌 %s\n", f.text(titleOrPlaceholder(event.Title))))
	f.appendLocation(builder, event)
	builder.WriteString("\n")
}

func (f formatter) appendLocation(builder *strings.Builder, event domain.Event) {
	if event.Location != "" {
		builder.WriteString(fmt.Sprintf("📍 %s\n", f.text(event.Location)))
	}
}

func titleOrPlaceholder(title string) string {
	if strings.TrimSpace(title) == "" {
		return domain.UntitledEvent
	}
	return title
}

// gmtLabel "GMT+8" / "GMT+5:30" 形式のオフセット表記
func gmtLabel(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours, minutes := offset/3600, (offset%3600)/60
	if minutes == 0 {
		return fmt.Sprintf("GMT%s%d", sign, hours)
	}
	return fmt.Sprintf("GMT%s%d:%02d", sign, hours, minutes)
}
