package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/k-negishi/calendar-digest-notifier/internal/domain"
)

// FileTokenStore JSON ファイルにトークンを保存する TokenStore の実装
type FileTokenStore struct {
	path string
}

// NewFileTokenStore path にトークンを保存するストアを作成
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Load ファイルが存在しない場合は nil, nil を返す
func (s *FileTokenStore) Load(_ context.Context) (*domain.TokenRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("トークンファイルの読み込みに失敗しました: %w", err)
	}

	var record domain.TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("トークンファイルのJSON解析に失敗しました: %w", err)
	}
	return &record, nil
}

// Save 一時ファイルに書き込んでからリネームする（パーミッション 0600）
func (s *FileTokenStore) Save(_ context.Context, record *domain.TokenRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("トークンのJSON変換に失敗しました: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("トークン保存先ディレクトリの作成に失敗しました: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("一時ファイルへの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("一時ファイルの同期に失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("一時ファイルのクローズに失敗しました: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("パーミッションの設定に失敗しました: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("トークンファイルの置き換えに失敗しました: %w", err)
	}
	return nil
}
