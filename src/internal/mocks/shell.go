package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCommandRunner is a testify mock implementing shell.CommandRunner.
// Expectations are set on the command name followed by its arguments,
// with the stdin input first for RunInput.
type MockCommandRunner struct {
	mock.Mock
}

func (m *MockCommandRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	callArgs := make([]interface{}, 0, len(args)+1)
	callArgs = append(callArgs, name)
	for _, a := range args {
		callArgs = append(callArgs, a)
	}
	result := m.Called(callArgs...)
	return result.String(0), result.Error(1)
}

func (m *MockCommandRunner) RunInput(ctx context.Context, input string, name string, args ...string) (string, error) {
	callArgs := make([]interface{}, 0, len(args)+2)
	callArgs = append(callArgs, input, name)
	for _, a := range args {
		callArgs = append(callArgs, a)
	}
	result := m.Called(callArgs...)
	return result.String(0), result.Error(1)
}
