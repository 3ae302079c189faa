package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/k-negishi/calendar-digest-notifier/internal/domain"
	"github.com/k-negishi/calendar-digest-notifier/internal/logging"
	"github.com/k-negishi/calendar-digest-notifier/internal/usecase"
)

// EventsProvider Google Calendar API からイベント一覧を取得する
type EventsProvider interface {
	ListEvents(ctx context.Context, accessToken, calendarID, timeMin, timeMax string) ([]*calendar.Event, error)
}

// GoogleCalendarRepository Google Calendar APIを使用したCalendarRepositoryの実装
type GoogleCalendarRepository struct {
	provider   EventsProvider
	calendarID string
	timezone   *time.Location
	logger     *slog.Logger
}

// apiEventsProvider 呼び出しごとにアクセストークン付きのサービスを作成する
type apiEventsProvider struct {
	httpClient *http.Client
	endpoint   string
}

// NewGoogleCalendarRepository Google Calendarリポジトリを作成
// endpoint が空の場合は本番の API を使用する
func NewGoogleCalendarRepository(httpClient *http.Client, endpoint, calendarID string, timezone *time.Location, logger *slog.Logger) *GoogleCalendarRepository {
	return NewGoogleCalendarRepositoryWithProvider(&apiEventsProvider{
		httpClient: httpClient,
		endpoint:   endpoint,
	}, calendarID, timezone, logger)
}

// NewGoogleCalendarRepositoryWithProvider EventsProvider を指定して作成
func NewGoogleCalendarRepositoryWithProvider(provider EventsProvider, calendarID string, timezone *time.Location, logger *slog.Logger) *GoogleCalendarRepository {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleCalendarRepository{
		provider:   provider,
		calendarID: calendarID,
		timezone:   timezone,
		logger:     logging.Component(logger, "google-calendar"),
	}
}

// ListEvents EventsProvider の実装
func (p *apiEventsProvider) ListEvents(ctx context.Context, accessToken, calendarID, timeMin, timeMax string) ([]*calendar.Event, error) {
	client := &http.Client{
		Timeout: p.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   p.httpClient.Transport,
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}

	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google Calendar APIサービスの作成に失敗しました: %w", err)
	}

	events, err := service.Events.List(calendarID).
		TimeMin(timeMin).
		TimeMax(timeMax).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(50).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return events.Items, nil
}

// FetchEvents window 内の予定を取得
func (r *GoogleCalendarRepository) FetchEvents(ctx context.Context, accessToken string, window domain.Window) ([]domain.Event, error) {
	timeMinStr := window.Start.In(r.timezone).Format(time.RFC3339)
	timeMaxStr := window.End.In(r.timezone).Format(time.RFC3339)

	items, err := r.provider.ListEvents(ctx, accessToken, r.calendarID, timeMinStr, timeMaxStr)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
			r.logger.Error("アクセストークンが拒否されました", "status", apiErr.Code, "body", apiErr.Body)
			return nil, fmt.Errorf("%w: カレンダーイベントの取得に失敗しました: %w", usecase.ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("カレンダーイベントの取得に失敗しました: %w", err)
	}

	domainEvents := make([]domain.Event, 0, len(items))
	for _, event := range items {
		domainEvent, err := r.convertToEvent(event)
		if err != nil {
			r.logger.Warn("イベントの変換をスキップしました", "id", event.Id, "err", err)
			continue
		}
		domainEvents = append(domainEvents, domainEvent)
	}

	return domain.FilterWindow(domainEvents, window), nil
}

// convertToEvent Google Calendar APIのイベントをドメインエンティティに変換
func (r *GoogleCalendarRepository) convertToEvent(event *calendar.Event) (domain.Event, error) {
	domainEvent := domain.Event{
		ID:       event.Id,
		Title:    event.Summary,
		Location: event.Location,
	}

	if domainEvent.Title == "" {
		domainEvent.Title = domain.UntitledEvent
	}

	if event.Start == nil || (event.Start.DateTime == "" && event.Start.Date == "") {
		return domain.Event{}, fmt.Errorf("開始時刻が設定されていません")
	}
	if event.End == nil || (event.End.DateTime == "" && event.End.Date == "") {
		return domain.Event{}, fmt.Errorf("終了時刻が設定されていません")
	}

	startTime, allDay, err := r.parseEventDateTime(event.Start)
	if err != nil {
		return domain.Event{}, fmt.Errorf("開始時刻の解析に失敗しました: %w", err)
	}
	endTime, _, err := r.parseEventDateTime(event.End)
	if err != nil {
		return domain.Event{}, fmt.Errorf("終了時刻の解析に失敗しました: %w", err)
	}

	domainEvent.StartTime = startTime
	domainEvent.EndTime = endTime
	domainEvent.IsAllDay = allDay
	return domainEvent, nil
}

// parseEventDateTime 終日イベントの日付は対象タイムゾーンの 00:00 として扱う
func (r *GoogleCalendarRepository) parseEventDateTime(dt *calendar.EventDateTime) (time.Time, bool, error) {
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, false, err
		}
		return t.In(r.timezone), false, nil
	}
	t, err := time.ParseInLocation("2006-01-02", dt.Date, r.timezone)
	if err != nil {
		return time.Time{}, true, err
	}
	return t, true, nil
}
