package service

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	done := make(chan *domain.AuditLog, 1)
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, log *domain.AuditLog) error {
			done <- log
			return nil
		},
	)

	svc.Log(context.Background(), &domain.AuditLog{
		Action:       domain.AuditActionOrderMaterialized,
		ResourceType: "order",
		ResourceID:   "cs_test_1",
	})

	select {
	case got := <-done:
		assert.Equal(t, domain.AuditActionOrderMaterialized, got.Action)
		assert.NotEqual(t, uuid.Nil, got.ID, "id should be assigned")
		assert.False(t, got.CreatedAt.IsZero(), "timestamp should be assigned")
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_SurvivesCancelledRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	done := make(chan error, 1)
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ *domain.AuditLog) error {
			done <- ctx.Err()
			return nil
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Log(ctx, &domain.AuditLog{Action: domain.AuditActionWebhookReceived, ResourceType: "event"})

	select {
	case err := <-done:
		assert.NoError(t, err, "persist must not inherit the request cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, newTestLogger())

	// Should not panic
	svc.Log(context.Background(), &domain.AuditLog{
		Action:       domain.AuditActionCheckoutStart,
		ResourceType: "checkout_session",
		IPAddress:    "127.0.0.1",
	})

	require.NoError(t, svc.Drain(context.Background()))
}

func TestAuditService_Drain_WaitsForInFlightWrites(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	var persisted atomic.Int32
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *domain.AuditLog) error {
			time.Sleep(50 * time.Millisecond)
			persisted.Add(1)
			return nil
		},
	).Times(3)

	for i := 0; i < 3; i++ {
		svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionWebhookReceived, ResourceType: "webhook_event"})
	}

	require.NoError(t, svc.Drain(context.Background()))
	assert.Equal(t, int32(3), persisted.Load(), "all writes finish before Drain returns")
}

func TestAuditService_Drain_HonoursDeadline(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	release := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *domain.AuditLog) error {
			<-release
			return nil
		},
	)
	svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionOrderDeleted, ResourceType: "order"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Drain(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, svc.Drain(context.Background()))
}
