package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/k-negishi/calendar-digest-notifier/internal/domain"
	"github.com/k-negishi/calendar-digest-notifier/internal/usecase"
)

// authorizationState 認可リクエストに付与する state
const authorizationState = "calendar-digest"

// CodeExchanger 認可URLの生成と認可コードの交換
type CodeExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.TokenRecord, error)
}

// Authorize 認可URLを表示し、入力された認可コードをトークンに交換して保存する
// リダイレクト先のURLをそのまま貼り付けた場合は code パラメータを取り出す
func Authorize(ctx context.Context, exchanger CodeExchanger, store usecase.TokenStore, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "以下のURLをブラウザで開いて認可してください:")
	fmt.Fprintln(out, exchanger.AuthCodeURL(authorizationState))
	fmt.Fprint(out, "認可コード（またはリダイレクト先のURL）を入力してください: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("認可コードの読み込みに失敗しました: %w", err)
	}

	code := extractCode(line)
	if code == "" {
		return errors.New("認可コードが入力されていません")
	}

	record, err := exchanger.Exchange(ctx, code)
	if err != nil {
		return err
	}
	if record.ExpiresIn <= 0 {
		record.ExpiresIn = domain.DefaultExpiresIn
	}
	if err := store.Save(ctx, record); err != nil {
		return fmt.Errorf("トークンの保存に失敗しました: %w", err)
	}

	fmt.Fprintln(out, "トークンを保存しました")
	return nil
}

// extractCode "...?code=xxx&state=..." の形式なら code の値を返す
func extractCode(input string) string {
	input = strings.TrimSpace(input)
	if !strings.Contains(input, "?") {
		return input
	}
	u, err := url.Parse(input)
	if err != nil {
		return input
	}
	return u.Query().Get("code")
}
