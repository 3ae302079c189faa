package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderMicrosoft = "microsoft"
	ProviderGoogle    = "google"

	NotifierTelegram = "telegram"
	NotifierLINE     = "line"
)

// Config アプリケーション設定構造体
// 優先順位は 環境変数 > 設定ファイル > デフォルト値
type Config struct {
	// カレンダー設定
	CalendarProvider string `yaml:"calendar_provider"`
	ClientID         string `yaml:"client_id"`
	ClientSecret     string `yaml:"client_secret"`
	TenantID         string `yaml:"tenant_id"`
	RedirectURL      string `yaml:"redirect_url"`
	CalendarID       string `yaml:"calendar_id"`
	GraphBaseURL     string `yaml:"graph_base_url"`

	// 通知設定
	Notifier               string `yaml:"notifier"`
	TelegramBotToken       string `yaml:"telegram_bot_token"`
	TelegramChatID         string `yaml:"telegram_chat_id"`
	LineChannelAccessToken string `yaml:"line_channel_access_token"`
	LineUserID             string `yaml:"line_user_id"`

	// トークンの保存先（TokenParam が設定されていれば Parameter Store を使う）
	TokenPath  string `yaml:"token_path"`
	TokenParam string `yaml:"token_param"`

	// その他設定
	Timezone       string `yaml:"timezone"`
	DigestSchedule string `yaml:"digest_schedule"`
	HTTPTimeout    string `yaml:"http_timeout"`
	LogLevel       string `yaml:"log_level"`

	location *time.Location
	timeout  time.Duration
}

// SSMParameterGetter Parameter Store からの読み込みに必要な操作
type SSMParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Default デフォルト値のみを設定した Config
func Default() *Config {
	return &Config{
		CalendarProvider: ProviderMicrosoft,
		TenantID:         "common",
		RedirectURL:      "http://localhost:53473",
		CalendarID:       "primary",
		GraphBaseURL:     "https://graph.microsoft.com/v1.0",
		Notifier:         NotifierTelegram,
		TokenPath:        "token.json",
		Timezone:         "Asia/Taipei",
		DigestSchedule:   "0 6 * * *",
		HTTPTimeout:      "30s",
		LogLevel:         "INFO",
	}
}

// IsLambda AWS Lambda環境かどうか判定
func IsLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// Load 環境に応じて設定を読み込み
// path が空でなければ YAML の設定ファイルを読み込む
func Load(ctx context.Context, path string) (*Config, error) {
	if IsLambda() {
		return loadAWSConfig(ctx, path)
	}
	return loadLocalConfig(path)
}

// loadLocalConfig ローカル開発環境用の設定読み込み
func loadLocalConfig(path string) (*Config, error) {
	// .envファイルを読み込み（存在する場合のみ）
	if err := godotenv.Load(); err != nil {
		slog.Warn(".envファイルが見つかりません", "err", err)
	}

	cfg, err := FromSources(path, os.Getenv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAWSConfig AWS Lambda環境用の設定読み込み
func loadAWSConfig(ctx context.Context, path string) (*Config, error) {
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %w", err)
	}

	return LoadWithParameterStore(ctx, path, ssm.NewFromConfig(awsConfig), os.Getenv)
}

// LoadWithParameterStore 機密情報を Parameter Store から補完して設定を読み込む
func LoadWithParameterStore(ctx context.Context, path string, client SSMParameterGetter, getenv func(string) string) (*Config, error) {
	cfg, err := FromSources(path, getenv)
	if err != nil {
		return nil, err
	}
	if cfg.TokenParam == "" {
		cfg.TokenParam = lookupOrDefault(getenv, "TOKEN_PARAM", "/calendar-digest/token")
	}

	if err := cfg.loadFromParameterStore(ctx, client, getenv); err != nil {
		return nil, fmt.Errorf("Parameter Storeからの設定読み込みに失敗しました: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromSources デフォルト値、設定ファイル、環境変数の順に重ねて Config を作成
// 検証は行わない
func FromSources(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	for _, b := range cfg.bindings() {
		if value := lookupOrDefault(getenv, b.env, ""); value != "" {
			*b.field = value
		}
	}

	cfg.CalendarProvider = strings.ToLower(cfg.CalendarProvider)
	cfg.Notifier = strings.ToLower(cfg.Notifier)
	return cfg, nil
}

// loadFile YAML設定ファイルを読み込み、記載された項目だけ上書きする
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイル %s の読み込みに失敗しました: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイル %s の解析に失敗しました: %w", path, err)
	}
	return nil
}

type binding struct {
	env   string
	field *string
}

// bindings 環境変数名と設定項目の対応
func (c *Config) bindings() []binding {
	return []binding{
		{"CALENDAR_PROVIDER", &c.CalendarProvider},
		{"CLIENT_ID", &c.ClientID},
		{"CLIENT_SECRET", &c.ClientSecret},
		{"TENANT_ID", &c.TenantID},
		{"REDIRECT_URL", &c.RedirectURL},
		{"CALENDAR_ID", &c.CalendarID},
		{"GRAPH_BASE_URL", &c.GraphBaseURL},
		{"NOTIFIER", &c.Notifier},
		{"TELEGRAM_BOT_TOKEN", &c.TelegramBotToken},
		{"TELEGRAM_CHAT_ID", &c.TelegramChatID},
		{"LINE_CHANNEL_ACCESS_TOKEN", &c.LineChannelAccessToken},
		{"LINE_USER_ID", &c.LineUserID},
		{"TOKEN_PATH", &c.TokenPath},
		{"TOKEN_PARAM", &c.TokenParam},
		{"TIMEZONE", &c.Timezone},
		{"DIGEST_SCHEDULE", &c.DigestSchedule},
		{"HTTP_TIMEOUT", &c.HTTPTimeout},
		{"LOG_LEVEL", &c.LogLevel},
	}
}

// secretParameter 機密情報と Parameter Store のパラメータ名の対応
type secretParameter struct {
	field       *string
	nameEnv     string
	defaultName string
	label       string
}

// loadFromParameterStore Parameter Storeから機密情報を読み込み
// 環境変数などで既に値がある項目と、選択していないプロバイダーの項目は取得しない
func (c *Config) loadFromParameterStore(ctx context.Context, client SSMParameterGetter, getenv func(string) string) error {
	params := []secretParameter{
		{&c.ClientID, "CLIENT_ID_PARAM", "/calendar-digest/client-id", "クライアントID"},
	}
	if c.CalendarProvider == ProviderGoogle {
		params = append(params, secretParameter{&c.ClientSecret, "CLIENT_SECRET_PARAM", "/calendar-digest/client-secret", "クライアントシークレット"})
	}
	switch c.Notifier {
	case NotifierTelegram:
		params = append(params,
			secretParameter{&c.TelegramBotToken, "TELEGRAM_BOT_TOKEN_PARAM", "/calendar-digest/telegram-bot-token", "Telegram Bot Token"},
			secretParameter{&c.TelegramChatID, "TELEGRAM_CHAT_ID_PARAM", "/calendar-digest/telegram-chat-id", "Telegram Chat ID"},
		)
	case NotifierLINE:
		params = append(params,
			secretParameter{&c.LineChannelAccessToken, "LINE_CHANNEL_ACCESS_TOKEN_PARAM", "/calendar-digest/line-channel-access-token", "LINE Channel Access Token"},
			secretParameter{&c.LineUserID, "LINE_USER_ID_PARAM", "/calendar-digest/line-user-id", "LINE User ID"},
		)
	}

	for _, p := range params {
		if *p.field != "" {
			continue
		}
		value, err := getParameter(ctx, client, lookupOrDefault(getenv, p.nameEnv, p.defaultName), true)
		if err != nil {
			return fmt.Errorf("%sの取得に失敗しました: %w", p.label, err)
		}
		*p.field = value
	}
	return nil
}

// getParameter Parameter Storeから指定されたパラメータを取得
func getParameter(ctx context.Context, client SSMParameterGetter, paramName string, withDecryption bool) (string, error) {
	input := &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(withDecryption),
	}

	result, err := client.GetParameter(ctx, input)
	if err != nil {
		return "", fmt.Errorf("パラメータ %s の取得に失敗しました: %w", paramName, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("パラメータ %s が空です", paramName)
	}

	return *result.Parameter.Value, nil
}

// Validate 必須項目と値の形式をまとめて検証
// 問題があればすべて列挙したエラーを返す
func (c *Config) Validate() error {
	var problems []string
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			problems = append(problems, fmt.Sprintf("%sが設定されていません", key))
		}
	}

	require("CLIENT_ID", c.ClientID)

	switch c.CalendarProvider {
	case ProviderMicrosoft:
		require("TENANT_ID", c.TenantID)
	case ProviderGoogle:
		require("CLIENT_SECRET", c.ClientSecret)
	default:
		problems = append(problems, fmt.Sprintf("CALENDAR_PROVIDERが不正です: %q", c.CalendarProvider))
	}

	switch c.Notifier {
	case NotifierTelegram:
		require("TELEGRAM_BOT_TOKEN", c.TelegramBotToken)
		require("TELEGRAM_CHAT_ID", c.TelegramChatID)
	case NotifierLINE:
		require("LINE_CHANNEL_ACCESS_TOKEN", c.LineChannelAccessToken)
		require("LINE_USER_ID", c.LineUserID)
	default:
		problems = append(problems, fmt.Sprintf("NOTIFIERが不正です: %q", c.Notifier))
	}

	if c.TokenParam == "" {
		require("TOKEN_PATH", c.TokenPath)
	}
	require("DIGEST_SCHEDULE", c.DigestSchedule)

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		problems = append(problems, fmt.Sprintf("TIMEZONEが不正です: %q", c.Timezone))
	} else {
		c.location = loc
	}

	timeout, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil || timeout <= 0 {
		problems = append(problems, fmt.Sprintf("HTTP_TIMEOUTが不正です: %q", c.HTTPTimeout))
	} else {
		c.timeout = timeout
	}

	if len(problems) > 0 {
		return errors.New("設定が不正です: " + strings.Join(problems, ", "))
	}
	return nil
}

// Location 対象タイムゾーン（Validate 後に有効）
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// RequestTimeout 外部APIへのリクエストのタイムアウト（Validate 後に有効）
func (c *Config) RequestTimeout() time.Duration {
	if c.timeout == 0 {
		return 30 * time.Second
	}
	return c.timeout
}

// lookupOrDefault 環境変数を取得し、存在しない場合はデフォルト値を返す
func lookupOrDefault(getenv func(string) string, key, defaultValue string) string {
	if value := strings.TrimSpace(getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
