package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/oauth2"

	"github.com/k-negishi/calendar-digest-notifier/internal/config"
	"github.com/k-negishi/calendar-digest-notifier/internal/gateway"
	"github.com/k-negishi/calendar-digest-notifier/internal/usecase"
)

// App 設定から組み立てた依存関係一式
type App struct {
	Config *config.Config
	Tokens *usecase.TokenManager
	OAuth  *gateway.OAuthRefresher
	Store  usecase.TokenStore
	Digest *usecase.NotifyScheduleUseCase
}

// New 通知まで含めたすべての依存関係を組み立てる
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	httpClient := NewHTTPClient(cfg)

	a, err := NewTokenOnly(ctx, cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}

	notifier, err := NewNotifier(cfg, httpClient)
	if err != nil {
		return nil, err
	}

	a.Digest = usecase.NewNotifyScheduleUseCase(a.Tokens, NewCalendarRepository(cfg, httpClient, logger), notifier, cfg.Location(), logger)
	return a, nil
}

// NewTokenOnly トークン管理に必要な部分だけを組み立てる（認可フロー用）
func NewTokenOnly(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (*App, error) {
	store, err := NewTokenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	oauth := gateway.NewOAuthRefresher(NewOAuthConfig(cfg), httpClient)
	return &App{
		Config: cfg,
		Tokens: usecase.NewTokenManager(store, oauth, logger),
		OAuth:  oauth,
		Store:  store,
	}, nil
}

// NewHTTPClient すべての外部APIで共有するクライアント
func NewHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: cfg.RequestTimeout()}
}

// NewOAuthConfig カレンダープロバイダーに応じた OAuth2 設定
func NewOAuthConfig(cfg *config.Config) *oauth2.Config {
	if cfg.CalendarProvider == config.ProviderGoogle {
		return gateway.GoogleOAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL)
	}
	oc := gateway.MicrosoftOAuthConfig(cfg.ClientID, cfg.TenantID, cfg.RedirectURL)
	oc.ClientSecret = cfg.ClientSecret
	return oc
}

// NewTokenStore TOKEN_PARAM があれば Parameter Store、なければファイルに保存する
func NewTokenStore(ctx context.Context, cfg *config.Config) (usecase.TokenStore, error) {
	if cfg.TokenParam == "" {
		return gateway.NewFileTokenStore(cfg.TokenPath), nil
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %w", err)
	}
	return gateway.NewSSMTokenStore(ssm.NewFromConfig(awsConfig), cfg.TokenParam), nil
}

// NewCalendarRepository カレンダープロバイダーに応じたリポジトリ
func NewCalendarRepository(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) usecase.CalendarRepository {
	if cfg.CalendarProvider == config.ProviderGoogle {
		return gateway.NewGoogleCalendarRepository(httpClient, "", cfg.CalendarID, cfg.Location(), logger)
	}
	return gateway.NewGraphCalendarRepository(cfg.GraphBaseURL, httpClient, cfg.Location(), logger)
}

// NewNotifier 通知先に応じた Notifier
func NewNotifier(cfg *config.Config, httpClient *http.Client) (usecase.Notifier, error) {
	if cfg.Notifier == config.NotifierLINE {
		return gateway.NewLINENotifier(cfg.LineChannelAccessToken, cfg.LineUserID, httpClient), nil
	}
	return gateway.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, "", httpClient)
}
