package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderRowColumns = []string{
	"id", "external_session_id", "user_id", "username", "email", "mobile", "customer_id",
	"product_type", "amount_paid", "currency", "status",
	"credential_enc", "credential_hash", "created_at",
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:                uuid.New(),
		ExternalSessionID: "cs_test_1",
		UserID:            "user-1",
		Username:          "alice",
		Email:             "alice@example.com",
		CustomerID:        "cus_1",
		ProductType:       domain.ProductTypeCredentialed,
		AmountPaid:        1000,
		Currency:          "usd",
		Status:            domain.OrderStatusCompleted,
		CreatedAt:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func sampleUser() *domain.User {
	return &domain.User{ID: "user-1", Username: "alice", Email: "alice@example.com"}
}

func sampleAuditLog() *domain.AuditLog {
	return &domain.AuditLog{
		ID:           uuid.New(),
		Actor:        "ops",
		Action:       domain.AuditActionOrderDeleted,
		ResourceType: "order",
		ResourceID:   "cs_test_1",
		Details:      `{"reason":"refund"}`,
		IPAddress:    "10.0.0.1",
		CreatedAt:    time.Now().UTC(),
	}
}

func orderRow(o *domain.Order) *pgxmock.Rows {
	return pgxmock.NewRows(orderRowColumns).AddRow(
		o.ID, o.ExternalSessionID, o.UserID, o.Username, o.Email, o.Mobile, o.CustomerID,
		string(o.ProductType), o.AmountPaid, o.Currency, string(o.Status),
		o.CredentialEnc, o.CredentialHash, o.CreatedAt,
	)
}

func TestOrderRepo_InsertIfAbsent_CreatesAndStoresCredential(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	o := sampleOrder()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(o.ID, o.ExternalSessionID, o.UserID, o.Username, o.Email, o.Mobile, o.CustomerID,
			string(o.ProductType), o.AmountPaid, o.Currency, string(o.Status), "", "", o.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(o.ID.String()))
	mock.ExpectExec("UPDATE orders SET credential_enc").
		WithArgs("enc-blob", "hash-1", o.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	repo := NewOrderRepository(mock, time.Second)
	calls := 0
	created, existing, err := repo.InsertIfAbsent(context.Background(), o, func(_ context.Context, ord *domain.Order) error {
		calls++
		ord.CredentialEnc = "enc-blob"
		ord.CredentialHash = "hash-1"
		return nil
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, existing)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_InsertIfAbsent_NoCredentialSkipsUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	o := sampleOrder()
	o.ProductType = domain.ProductTypePlain
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(o.ID.String()))
	mock.ExpectCommit()

	created, _, err := NewOrderRepository(mock, 0).InsertIfAbsent(context.Background(), o, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_InsertIfAbsent_ConflictReturnsExisting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	stored := sampleOrder()
	stored.CredentialHash = "stored-hash"
	stored.CredentialEnc = "stored-enc"

	attempt := sampleOrder()
	attempt.ExternalSessionID = stored.ExternalSessionID

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectRollback()
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE external_session_id").
		WithArgs(stored.ExternalSessionID).
		WillReturnRows(orderRow(stored))

	repo := NewOrderRepository(mock, time.Second)
	created, existing, err := repo.InsertIfAbsent(context.Background(), attempt, func(context.Context, *domain.Order) error {
		t.Fatal("beforeCommit must not run on conflict")
		return nil
	})

	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, existing)
	assert.Equal(t, stored.ID, existing.ID)
	assert.Equal(t, "stored-hash", existing.CredentialHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_InsertIfAbsent_UniqueViolationTreatedAsConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	stored := sampleOrder()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE external_session_id").
		WillReturnRows(orderRow(stored))

	created, existing, err := NewOrderRepository(mock, 0).InsertIfAbsent(context.Background(), sampleOrder(), nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, existing.ID)
}

func TestOrderRepo_InsertIfAbsent_BeforeCommitErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	o := sampleOrder()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(o.ID.String()))
	mock.ExpectRollback()

	issueErr := errors.New("entropy exhausted")
	created, _, err := NewOrderRepository(mock, 0).InsertIfAbsent(context.Background(), o, func(context.Context, *domain.Order) error {
		return issueErr
	})

	assert.ErrorIs(t, err, issueErr)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_InsertIfAbsent_InsertError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, _, err = NewOrderRepository(mock, 0).InsertIfAbsent(context.Background(), sampleOrder(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert order")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_FindBySessionID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	stored := sampleOrder()
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE external_session_id").
		WithArgs("cs_test_1").
		WillReturnRows(orderRow(stored))

	o, err := NewOrderRepository(mock, 0).FindBySessionID(context.Background(), "cs_test_1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, domain.ProductTypeCredentialed, o.ProductType)
	assert.Equal(t, domain.OrderStatusCompleted, o.Status)
	assert.Nil(t, o.Credential)
}

func TestOrderRepo_FindBySessionID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE external_session_id").
		WithArgs("cs_missing").
		WillReturnRows(pgxmock.NewRows(orderRowColumns))

	o, err := NewOrderRepository(mock, 0).FindBySessionID(context.Background(), "cs_missing")
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestOrderRepo_FindByCredentialHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	stored := sampleOrder()
	stored.CredentialHash = "abc123"
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE credential_hash").
		WithArgs("abc123").
		WillReturnRows(orderRow(stored))

	o, err := NewOrderRepository(mock, 0).FindByCredentialHash(context.Background(), "abc123")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.True(t, o.HasCredential())
}

func TestOrderRepo_List_WithFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	pt := domain.ProductTypeCredentialed
	st := domain.OrderStatusCompleted
	first := sampleOrder()
	second := sampleOrder()
	second.ExternalSessionID = "cs_test_2"

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("user-1", string(pt), string(st)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery("ORDER BY created_at DESC LIMIT").
		WithArgs("user-1", string(pt), string(st), 10, 10).
		WillReturnRows(orderRow(first).AddRow(
			second.ID, second.ExternalSessionID, second.UserID, second.Username, second.Email, second.Mobile,
			second.CustomerID, string(second.ProductType), second.AmountPaid, second.Currency,
			string(second.Status), "", "", second.CreatedAt,
		))

	orders, total, err := NewOrderRepository(mock, 0).List(context.Background(), ports.OrderListParams{
		UserID:      "user-1",
		ProductType: &pt,
		Status:      &st,
		Page:        2,
		PageSize:    10,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, orders, 2)
	assert.Equal(t, "cs_test_2", orders[1].ExternalSessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepo_List_NoFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("ORDER BY created_at DESC LIMIT").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(orderRowColumns))

	orders, total, err := NewOrderRepository(mock, 0).List(context.Background(), ports.OrderListParams{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
}

func TestOrderRepo_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM orders").
		WithArgs("cs_test_1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM orders").
		WithArgs("cs_test_1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewOrderRepository(mock, 0)
	deleted, err := repo.Delete(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func listAll() ports.OrderListParams {
	return ports.OrderListParams{Page: 1, PageSize: 100}
}
