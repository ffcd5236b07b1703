package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/asp-search/internal/lookup"
	"github.com/sells-group/asp-search/internal/model"
)

// --- Lookup Mock ---

type mockLookupClient struct {
	mock.Mock
}

func (m *mockLookupClient) Lookup(ctx context.Context, key string, kind model.LookupKind) (*lookup.Response, error) {
	args := m.Called(ctx, key, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lookup.Response), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Put(ctx context.Context, rec model.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockStore) PutMetadata(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *mockStore) Metadata(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, key string) (*model.Record, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Record), args.Error(1)
}

func (m *mockStore) List(ctx context.Context, limit int) ([]model.Record, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Record), args.Error(1)
}

func (m *mockStore) Columns(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// --- Fixtures ---

func found(fields map[string]any) *lookup.Response {
	return &lookup.Response{ResultCount: 1, Results: []map[string]any{fields}}
}

func empty() *lookup.Response {
	return &lookup.Response{ResultCount: 0}
}
