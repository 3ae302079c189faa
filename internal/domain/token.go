package domain

import (
	"math"
	"time"
)

const (
	// RefreshMargin 有効期限のこの時間前にリフレッシュする
	RefreshMargin = 300 * time.Second

	// DefaultExpiresIn プロバイダが expires_in を返さない場合の有効期間（秒）
	DefaultExpiresIn = 3600
)

// TokenRecord 永続化する OAuth2 トークン
// timestamp は発行時刻の UNIX 秒（小数を含む）
type TokenRecord struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresIn    int64   `json:"expires_in"`
	Timestamp    float64 `json:"timestamp"`
}

// NewTokenRecord 発行時刻 issuedAt でレコードを作成
func NewTokenRecord(accessToken, refreshToken string, expiresIn int64, issuedAt time.Time) *TokenRecord {
	return &TokenRecord{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		Timestamp:    float64(issuedAt.UnixNano()) / float64(time.Second),
	}
}

// Valid 必須フィールドが揃っているか
func (r *TokenRecord) Valid() bool {
	return r != nil && r.AccessToken != "" && r.RefreshToken != ""
}

// IssuedAt 発行時刻
func (r *TokenRecord) IssuedAt() time.Time {
	sec, frac := math.Modf(r.Timestamp)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// Remaining 残り有効時間 = expires_in - (now - issued_at)
func (r *TokenRecord) Remaining(now time.Time) time.Duration {
	return time.Duration(r.ExpiresIn)*time.Second - now.Sub(r.IssuedAt())
}

// NeedsRefresh 残り有効時間が RefreshMargin 未満か
func (r *TokenRecord) NeedsRefresh(now time.Time) bool {
	return r.Remaining(now) < RefreshMargin
}
