package mocks

import (
	"context"

	"github.com/segyhp/agriloan-engine/internal/notify"

	"github.com/stretchr/testify/mock"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendReminder(ctx context.Context, reminder notify.Reminder) error {
	args := m.Called(ctx, reminder)
	return args.Error(0)
}
