package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/k-negishi/calendar-digest-notifier/internal/domain"
	"github.com/k-negishi/calendar-digest-notifier/internal/usecase"
)

// MockEventsProvider は EventsProvider のテスト用モック
type MockEventsProvider struct {
	mock.Mock
}

func (m *MockEventsProvider) ListEvents(ctx context.Context, accessToken, calendarID, timeMin, timeMax string) ([]*calendar.Event, error) {
	args := m.Called(ctx, accessToken, calendarID, timeMin, timeMax)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*calendar.Event), args.Error(1)
}

// --- convertToEvent テスト（純粋ロジック） ---

func TestConvertToEvent_TimedEvent(t *testing.T) {
	repo := NewGoogleCalendarRepositoryWithProvider(nil, "test", taipei, discardLogger())

	event := &calendar.Event{
		Id:       "1",
		Summary:  "テストイベント",
		Location: "台北",
		Start:    &calendar.EventDateTime{DateTime: "2024-01-15T10:00:00+09:00"},
		End:      &calendar.EventDateTime{DateTime: "2024-01-15T11:00:00+09:00"},
	}

	result, err := repo.convertToEvent(event)
	require.NoError(t, err)
	assert.Equal(t, "1", result.ID)
	assert.Equal(t, "テストイベント", result.Title)
	assert.Equal(t, "台北", result.Location)
	assert.False(t, result.IsAllDay)
	assert.Equal(t, 9, result.StartTime.Hour())
	assert.Equal(t, 10, result.EndTime.Hour())
}

func TestConvertToEvent_AllDayEvent(t *testing.T) {
	repo := NewGoogleCalendarRepositoryWithProvider(nil, "test", taipei, discardLogger())

	event := &calendar.Event{
		Id:      "2",
		Summary: "終日イベント",
		Start:   &calendar.EventDateTime{Date: "2024-01-15"},
		End:     &calendar.EventDateTime{Date: "2024-01-16"},
	}

	result, err := repo.convertToEvent(event)
	require.NoError(t, err)
	assert.True(t, result.IsAllDay)
	assert.True(t, time.Date(2024, 1, 15, 0, 0, 0, 0, taipei).Equal(result.StartTime))
	assert.True(t, time.Date(2024, 1, 16, 0, 0, 0, 0, taipei).Equal(result.EndTime))
}

func TestConvertToEvent_EmptyTitle(t *testing.T) {
	repo := NewGoogleCalendarRepositoryWithProvider(nil, "test", taipei, discardLogger())

	event := &calendar.Event{
		Id:    "3",
		Start: &calendar.EventDateTime{DateTime: "2024-01-15T10:00:00+08:00"},
		End:   &calendar.EventDateTime{DateTime: "2024-01-15T11:00:00+08:00"},
	}

	result, err := repo.convertToEvent(event)
	require.NoError(t, err)
	assert.Equal(t, domain.UntitledEvent, result.Title)
}

func TestConvertToEvent_NoStartTime(t *testing.T) {
	repo := NewGoogleCalendarRepositoryWithProvider(nil, "test", taipei, discardLogger())

	event := &calendar.Event{
		Id:    "4",
		Start: &calendar.EventDateTime{},
		End:   &calendar.EventDateTime{DateTime: "2024-01-15T11:00:00+08:00"},
	}

	_, err := repo.convertToEvent(event)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "開始時刻が設定されていません")
}

// --- FetchEvents テスト（モック使用） ---

func TestGoogleFetchEvents_Success(t *testing.T) {
	mockProvider := new(MockEventsProvider)
	repo := NewGoogleCalendarRepositoryWithProvider(mockProvider, "test-calendar", taipei, discardLogger())

	events := []*calendar.Event{
		{
			Id:      "1",
			Summary: "朝会",
			Start:   &calendar.EventDateTime{DateTime: "2024-01-15T09:00:00+08:00"},
			End:     &calendar.EventDateTime{DateTime: "2024-01-15T09:30:00+08:00"},
		},
		{
			Id:    "broken",
			Start: &calendar.EventDateTime{},
			End:   &calendar.EventDateTime{},
		},
	}

	mockProvider.On("ListEvents", mock.Anything, "token", "test-calendar",
		"2024-01-14T00:00:00+08:00", "2024-01-17T00:00:00+08:00").Return(events, nil)

	result, err := repo.FetchEvents(context.Background(), "token", testWindow())
	require.NoError(t, err)
	assert.Len(t, result, 1)
	assert.Equal(t, "朝会", result[0].Title)
	mockProvider.AssertExpectations(t)
}

func TestGoogleFetchEvents_APIError(t *testing.T) {
	mockProvider := new(MockEventsProvider)
	repo := NewGoogleCalendarRepositoryWithProvider(mockProvider, "test-calendar", taipei, discardLogger())

	mockProvider.On("ListEvents", mock.Anything, "token", "test-calendar", mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Return(nil, errors.New("API error"))

	_, err := repo.FetchEvents(context.Background(), "token", testWindow())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "カレンダーイベントの取得に失敗しました")
	assert.NotErrorIs(t, err, usecase.ErrUnauthorized)
}

func TestGoogleFetchEvents_Unauthorized(t *testing.T) {
	mockProvider := new(MockEventsProvider)
	repo := NewGoogleCalendarRepositoryWithProvider(mockProvider, "", taipei, discardLogger())

	mockProvider.On("ListEvents", mock.Anything, "token", "primary", mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Return(nil, &googleapi.Error{Code: http.StatusUnauthorized, Message: "Invalid Credentials"})

	_, err := repo.FetchEvents(context.Background(), "token", testWindow())
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)
}

// --- apiEventsProvider テスト（httptest 使用） ---

func TestAPIEventsProvider_SendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer managed-token", r.Header.Get("Authorization"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/calendars/test-calendar/events"), r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(t, "startTime", r.URL.Query().Get("orderBy"))
		assert.Equal(t, "50", r.URL.Query().Get("maxResults"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[{"id":"1","summary":"朝会",
			"start":{"dateTime":"2024-01-15T09:00:00+08:00"},
			"end":{"dateTime":"2024-01-15T09:30:00+08:00"}}]}`)
	}))
	defer server.Close()

	repo := NewGoogleCalendarRepository(server.Client(), server.URL+"/", "test-calendar", taipei, discardLogger())

	result, err := repo.FetchEvents(context.Background(), "managed-token", testWindow())
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "朝会", result[0].Title)
}
