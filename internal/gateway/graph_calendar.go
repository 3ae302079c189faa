package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/k-negishi/calendar-digest-notifier/internal/domain"
	"github.com/k-negishi/calendar-digest-notifier/internal/logging"
	"github.com/k-negishi/calendar-digest-notifier/internal/usecase"
)

// DefaultGraphBaseURL Microsoft Graph API v1.0
const DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

const (
	graphSelectFields = "subject,start,end,location,isAllDay,recurrence"
	graphMaxResults   = 50
	graphLocalLayout  = "2006-01-02T15:04:05"
)

// GraphCalendarRepository Microsoft Graph の calendarView を使用した CalendarRepository の実装
type GraphCalendarRepository struct {
	baseURL    string
	httpClient *http.Client
	timezone   *time.Location
	logger     *slog.Logger
}

// graphEventList calendarView のレスポンス
type graphEventList struct {
	Value []graphEvent `json:"value"`
}

type graphEvent struct {
	ID       string         `json:"id"`
	Subject  string         `json:"subject"`
	Start    *graphDateTime `json:"start"`
	End      *graphDateTime `json:"end"`
	Location *struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
	IsAllDay bool `json:"isAllDay"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// NewGraphCalendarRepository Graph カレンダーリポジトリを作成
func NewGraphCalendarRepository(baseURL string, httpClient *http.Client, timezone *time.Location, logger *slog.Logger) *GraphCalendarRepository {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	return &GraphCalendarRepository{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		timezone:   timezone,
		logger:     logging.Component(logger, "graph"),
	}
}

// FetchEvents window 内の予定を取得
func (r *GraphCalendarRepository) FetchEvents(ctx context.Context, accessToken string, window domain.Window) ([]domain.Event, error) {
	query := url.Values{}
	query.Set("$select", graphSelectFields)
	query.Set("$orderby", "start/dateTime asc")
	query.Set("$top", strconv.Itoa(graphMaxResults))
	query.Set("startDateTime", window.Start.In(r.timezone).Format(time.RFC3339))
	query.Set("endDateTime", window.End.In(r.timezone).Format(time.RFC3339))

	endpoint := r.baseURL + "/me/calendar/calendarView?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Prefer", fmt.Sprintf("outlook.timezone=%q", r.timezone.String()))

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Graph APIリクエストの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Graph APIレスポンスの読み込みに失敗しました: %w", err)
	}
	r.logger.Debug("Graph APIレスポンス", "status", resp.StatusCode, "body", string(body))

	if resp.StatusCode == http.StatusUnauthorized {
		r.logger.Error("アクセストークンが拒否されました", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("%w: Graph API (Status: %d)", usecase.ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Error("Graph API呼び出しが失敗しました", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("Graph API呼び出しが失敗しました (Status: %d)", resp.StatusCode)
	}

	var list graphEventList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("Graph APIレスポンスのJSON解析に失敗しました: %w", err)
	}

	events := make([]domain.Event, 0, len(list.Value))
	for _, item := range list.Value {
		event, err := r.convertToEvent(item)
		if err != nil {
			r.logger.Warn("イベントの変換をスキップしました", "id", item.ID, "err", err)
			continue
		}
		events = append(events, event)
	}

	return domain.FilterWindow(events, window), nil
}

// convertToEvent Graph のイベントをドメインエンティティに変換
func (r *GraphCalendarRepository) convertToEvent(item graphEvent) (domain.Event, error) {
	event := domain.Event{
		ID:       item.ID,
		Title:    item.Subject,
		IsAllDay: item.IsAllDay,
	}
	if event.Title == "" {
		event.Title = domain.UntitledEvent
	}
	if item.Location != nil {
		event.Location = item.Location.DisplayName
	}

	if item.Start == nil || item.Start.DateTime == "" {
		return domain.Event{}, fmt.Errorf("開始時刻が設定されていません")
	}
	if item.End == nil || item.End.DateTime == "" {
		return domain.Event{}, fmt.Errorf("終了時刻が設定されていません")
	}

	start, err := parseGraphDateTime(*item.Start, r.timezone)
	if err != nil {
		return domain.Event{}, fmt.Errorf("開始時刻の解析に失敗しました: %w", err)
	}
	end, err := parseGraphDateTime(*item.End, r.timezone)
	if err != nil {
		return domain.Event{}, fmt.Errorf("終了時刻の解析に失敗しました: %w", err)
	}

	event.StartTime = start
	event.EndTime = end
	return event, nil
}

// parseGraphDateTime 小数秒を除去し、オフセットがなければ対象タイムゾーンとして解釈する
func parseGraphDateTime(value graphDateTime, timezone *time.Location) (time.Time, error) {
	s := stripFractionalSeconds(value.DateTime)

	if strings.HasSuffix(s, "Z") || hasUTCOffset(s) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(timezone), nil
	}

	loc := timezone
	if strings.EqualFold(value.TimeZone, "UTC") {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(graphLocalLayout, s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(timezone), nil
}

// stripFractionalSeconds "2024-01-15T09:00:00.0000000+08:00" -> "2024-01-15T09:00:00+08:00"
func stripFractionalSeconds(s string) string {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s
	}
	end := dot + 1
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:dot] + s[end:]
}

func hasUTCOffset(s string) bool {
	if len(s) <= len(graphLocalLayout) {
		return false
	}
	c := s[len(graphLocalLayout)]
	return c == '+' || c == '-'
}
