package gateway

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	"google.golang.org/api/calendar/v3"

	"github.com/k-negishi/calendar-digest-notifier/internal/domain"
)

const (
	// DefaultRedirectURL 認可コード取得用のループバックアドレス
	DefaultRedirectURL = "http://localhost:53473"

	graphCalendarReadScope = "https://graph.microsoft.com/Calendars.Read"
	offlineAccessScope     = "offline_access"
)

// MicrosoftOAuthConfig パブリッククライアント（シークレットなし）の Microsoft ID プラットフォーム設定
func MicrosoftOAuthConfig(clientID, tenant, redirectURL string) *oauth2.Config {
	if tenant == "" {
		tenant = "common"
	}
	endpoint := microsoft.AzureADEndpoint(tenant)
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return &oauth2.Config{
		ClientID:    clientID,
		Endpoint:    endpoint,
		RedirectURL: redirectURL,
		Scopes:      []string{graphCalendarReadScope, offlineAccessScope},
	}
}

// GoogleOAuthConfig Google Calendar 読み取り専用の設定
func GoogleOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{calendar.CalendarReadonlyScope},
	}
}

// OAuthRefresher oauth2.Config を使った TokenRefresher の実装
type OAuthRefresher struct {
	config     *oauth2.Config
	httpClient *http.Client
	clock      func() time.Time
}

// NewOAuthRefresher トークンエンドポイントへの通信には httpClient を使用する
func NewOAuthRefresher(config *oauth2.Config, httpClient *http.Client) *OAuthRefresher {
	return &OAuthRefresher{
		config:     config,
		httpClient: httpClient,
		clock:      time.Now,
	}
}

// Refresh リフレッシュトークンを新しいトークンに交換
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*domain.TokenRecord, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)

	// AccessToken が空のトークンは常に期限切れ扱いになり、リフレッシュが走る
	source := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("トークンエンドポイントの呼び出しに失敗しました: %w", err)
	}
	return r.toRecord(token), nil
}

// AuthCodeURL 初回認可用の URL
func (r *OAuthRefresher) AuthCodeURL(state string) string {
	return r.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange 認可コードをトークンに交換
func (r *OAuthRefresher) Exchange(ctx context.Context, code string) (*domain.TokenRecord, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)

	token, err := r.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("認可コードの交換に失敗しました: %w", err)
	}
	return r.toRecord(token), nil
}

// toRecord expires_in は Expiry から秒単位で逆算する（不明な場合は 0）
func (r *OAuthRefresher) toRecord(token *oauth2.Token) *domain.TokenRecord {
	now := r.clock()
	var expiresIn int64
	if !token.Expiry.IsZero() {
		expiresIn = int64(math.Round(token.Expiry.Sub(now).Seconds()))
		if expiresIn < 0 {
			expiresIn = 0
		}
	}
	return domain.NewTokenRecord(token.AccessToken, token.RefreshToken, expiresIn, now)
}
