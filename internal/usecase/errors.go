package usecase

import "errors"

var (
	// ErrNoToken 保存済みトークンが存在しないか壊れている
	ErrNoToken = errors.New("有効なトークンが見つかりません")

	// ErrRefreshFailed リフレッシュトークンによる更新に失敗した
	ErrRefreshFailed = errors.New("トークンの更新に失敗しました")

	// ErrUnauthorized API がアクセストークンを拒否した（HTTP 401）
	ErrUnauthorized = errors.New("認証エラー")
)
