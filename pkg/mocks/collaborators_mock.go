// Package mocks provides testify mocks for the engine's collaborator
// interfaces.
package mocks

import (
	"context"

	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockNotifier is a mock implementation of protocol.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendEmailBatch(ctx context.Context, batch protocol.EmailBatch) (map[string]any, error) {
	args := m.Called(ctx, batch)

	result, _ := args.Get(0).(map[string]any)

	return result, args.Error(1)
}

func (m *MockNotifier) SendWhatsApp(ctx context.Context, recipient protocol.WhatsAppRecipient, body string) (map[string]any, error) {
	args := m.Called(ctx, recipient, body)

	result, _ := args.Get(0).(map[string]any)

	return result, args.Error(1)
}

// MockQueryRunner is a mock implementation of protocol.QueryRunner.
type MockQueryRunner struct {
	mock.Mock
}

func (m *MockQueryRunner) RunPrebuilt(ctx context.Context, name string, params map[string]any) ([]map[string]any, error) {
	args := m.Called(ctx, name, params)

	rows, _ := args.Get(0).([]map[string]any)

	return rows, args.Error(1)
}

func (m *MockQueryRunner) Run(ctx context.Context, query string, params []any) ([]map[string]any, error) {
	args := m.Called(ctx, query, params)

	rows, _ := args.Get(0).([]map[string]any)

	return rows, args.Error(1)
}

// MockHTTPClient is a mock implementation of protocol.HTTPClient.
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(ctx context.Context, req protocol.HTTPRequest) (*protocol.HTTPResponse, error) {
	args := m.Called(ctx, req)

	resp, _ := args.Get(0).(*protocol.HTTPResponse)

	return resp, args.Error(1)
}

// MockExecutionLog is a mock implementation of protocol.ExecutionLog.
type MockExecutionLog struct {
	mock.Mock
}

func (m *MockExecutionLog) Append(ctx context.Context, runID string, detail *models.NodeExecutionDetail) error {
	args := m.Called(ctx, runID, detail)

	return args.Error(0)
}
