package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/k-negishi/calendar-digest-notifier/internal/domain"
)

// SSMParameterAPI SSMTokenStore が使用する Parameter Store の操作
type SSMParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// SSMTokenStore Parameter Store の SecureString にトークンを保存する TokenStore の実装
// Lambda のようにローカルファイルが残らない環境で使用する
type SSMTokenStore struct {
	client SSMParameterAPI
	name   string
}

// NewSSMTokenStore パラメータ name にトークンを保存するストアを作成
func NewSSMTokenStore(client SSMParameterAPI, name string) *SSMTokenStore {
	return &SSMTokenStore{client: client, name: name}
}

// Load パラメータが存在しない場合は nil, nil を返す
func (s *SSMTokenStore) Load(ctx context.Context) (*domain.TokenRecord, error) {
	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("パラメータ %s の取得に失敗しました: %w", s.name, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return nil, nil
	}

	var record domain.TokenRecord
	if err := json.Unmarshal([]byte(*result.Parameter.Value), &record); err != nil {
		return nil, fmt.Errorf("パラメータ %s のJSON解析に失敗しました: %w", s.name, err)
	}
	return &record, nil
}

// Save パラメータを上書きする
func (s *SSMTokenStore) Save(ctx context.Context, record *domain.TokenRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("トークンのJSON変換に失敗しました: %w", err)
	}

	_, err = s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.name),
		Value:     aws.String(string(data)),
		Type:      types.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("パラメータ %s の保存に失敗しました: %w", s.name, err)
	}
	return nil
}
