package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/k-negishi/calendar-digest-notifier/internal/domain"
)

// MockSSMClient は SSMParameterAPI のテスト用モック
type MockSSMClient struct {
	mock.Mock
}

func (m *MockSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ssm.GetParameterOutput), args.Error(1)
}

func (m *MockSSMClient) PutParameter(ctx context.Context, params *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ssm.PutParameterOutput), args.Error(1)
}

const testTokenParam = "/calendar-digest-notifier/token"

func TestSSMTokenStore_Load(t *testing.T) {
	mockSSM := new(MockSSMClient)
	store := NewSSMTokenStore(mockSSM, testTokenParam)

	mockSSM.On("GetParameter", mock.Anything, mock.MatchedBy(func(input *ssm.GetParameterInput) bool {
		return *input.Name == testTokenParam && *input.WithDecryption
	})).Return(&ssm.GetParameterOutput{
		Parameter: &types.Parameter{Value: aws.String(`{"access_token":"a","refresh_token":"r","expires_in":3600,"timestamp":1700000000}`)},
	}, nil)

	record, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", record.AccessToken)
	assert.Equal(t, time.Unix(1_700_000_000, 0), record.IssuedAt())
	mockSSM.AssertExpectations(t)
}

func TestSSMTokenStore_LoadNotFound(t *testing.T) {
	mockSSM := new(MockSSMClient)
	store := NewSSMTokenStore(mockSSM, testTokenParam)

	mockSSM.On("GetParameter", mock.Anything, mock.Anything).
		Return(nil, &types.ParameterNotFound{Message: aws.String("not found")})

	record, err := store.Load(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestSSMTokenStore_LoadAPIError(t *testing.T) {
	mockSSM := new(MockSSMClient)
	store := NewSSMTokenStore(mockSSM, testTokenParam)

	mockSSM.On("GetParameter", mock.Anything, mock.Anything).Return(nil, errors.New("SSM API error"))

	_, err := store.Load(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "パラメータ /calendar-digest-notifier/token の取得に失敗しました")
}

func TestSSMTokenStore_Save(t *testing.T) {
	mockSSM := new(MockSSMClient)
	store := NewSSMTokenStore(mockSSM, testTokenParam)
	record := domain.NewTokenRecord("a", "r", 3600, time.Unix(1_700_000_000, 0))

	mockSSM.On("PutParameter", mock.Anything, mock.MatchedBy(func(input *ssm.PutParameterInput) bool {
		return *input.Name == testTokenParam &&
			*input.Overwrite &&
			input.Type == types.ParameterTypeSecureString &&
			*input.Value == `{"access_token":"a","refresh_token":"r","expires_in":3600,"timestamp":1700000000}`
	})).Return(&ssm.PutParameterOutput{}, nil)

	require.NoError(t, store.Save(context.Background(), record))
	mockSSM.AssertExpectations(t)
}

func TestSSMTokenStore_SaveError(t *testing.T) {
	mockSSM := new(MockSSMClient)
	store := NewSSMTokenStore(mockSSM, testTokenParam)

	mockSSM.On("PutParameter", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	err := store.Save(context.Background(), domain.NewTokenRecord("a", "r", 3600, time.Unix(1, 0)))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "の保存に失敗しました")
}
