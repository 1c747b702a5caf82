package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/nexgo-app/nexgo-engine/internal/models"
)

func TestDisputeEligibility(t *testing.T) {
	tests := []struct {
		name            string
		status          string
		alreadyDisputed bool
		age             time.Duration
		wantErr         error
	}{
		{"delivered inside window", models.OrderDelivered, false, 10 * time.Minute, nil},
		{"delivered just inside window", models.OrderDelivered, false, disputeWindow - time.Second, nil},
		{"delivered exactly at window", models.OrderDelivered, false, disputeWindow, nil},
		{"window closed", models.OrderDelivered, false, disputeWindow + time.Second, models.ErrDisputeWindowClosed},
		{"already disputed", models.OrderDelivered, true, 5 * time.Minute, models.ErrAlreadyDisputed},
		{"still out for delivery", models.OrderOutForDelivery, false, 5 * time.Minute, models.ErrNotDisputable},
		{"cancelled order", models.OrderCancelled, false, 5 * time.Minute, models.ErrNotDisputable},
		{"already under review", models.OrderUnderReview, true, 5 * time.Minute, models.ErrNotDisputable},
		// Wrong state wins over the closed window so the caller sees the
		// most specific refusal.
		{"wrong state and stale", models.OrderPending, false, 2 * time.Hour, models.ErrNotDisputable},
		{"disputed and stale", models.OrderDelivered, true, 2 * time.Hour, models.ErrAlreadyDisputed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := disputeEligibility(tt.status, tt.alreadyDisputed, tt.age)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func cancelOrderContext(t *testing.T, role string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/orders/5/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: "5"}}
	c.Set("userID", int64(7))
	c.Set("userRole", role)
	return c, w
}

func TestCancelOrderRefundsInOneTransaction(t *testing.T) {
	h, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT o.status, o.order_number").
		WillReturnRows(sqlmock.NewRows(
			[]string{"status", "order_number", "student_id", "owner_id", "total_amount", "payment_method"}).
			AddRow(models.OrderPending, "NX-9", int64(7), int64(2), int64(5000), models.PaymentWallet))
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id FROM wallets").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec("INSERT INTO wallet_transactions").
		WithArgs(int64(3), int64(7), int64(5000), "Refund NX-9", "↩️", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE wallets SET balance = balance \\+ ").
		WithArgs(int64(5000), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, w := cancelOrderContext(t, models.RoleStudent)
	h.CancelOrder(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"refunded":5000`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrderLostRaceRefundsNothing(t *testing.T) {
	h, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT o.status, o.order_number").
		WillReturnRows(sqlmock.NewRows(
			[]string{"status", "order_number", "student_id", "owner_id", "total_amount", "payment_method"}).
			AddRow(models.OrderPending, "NX-9", int64(7), int64(2), int64(5000), models.PaymentWallet))
	// A concurrent cancel moved the status first; the compare-and-set
	// matches nothing and the whole transaction rolls back uncredited.
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	c, w := cancelOrderContext(t, models.RoleStudent)
	h.CancelOrder(c)

	require.Equal(t, http.StatusConflict, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrderTransferPaidRefundsNothing(t *testing.T) {
	h, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT o.status, o.order_number").
		WillReturnRows(sqlmock.NewRows(
			[]string{"status", "order_number", "student_id", "owner_id", "total_amount", "payment_method"}).
			AddRow(models.OrderPending, "NX-9", int64(7), int64(2), int64(5000), models.PaymentTransfer))
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, w := cancelOrderContext(t, models.RoleStudent)
	h.CancelOrder(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"refunded":0`)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFileDisputePublishesChangeEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	h, mock := newMockDB(t)
	h.RDB = rdb

	sub := rdb.Subscribe(context.Background(), orderEventsChannel)
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	mock.ExpectQuery("SELECT status, order_number, disputed_at, created_at").
		WithArgs("5", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "order_number", "disputed_at", "created_at"}).
			AddRow(models.OrderDelivered, "NX-9", nil, time.Now()))
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/orders/5/dispute", strings.NewReader(`{"reason":"Cold food"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "5"}}
	c.Set("userID", int64(7))

	h.FileDispute(c)
	require.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var ev changeEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
	require.Equal(t, "order", ev.Type)
	require.Equal(t, int64(5), ev.ID)
	require.Equal(t, "NX-9", ev.Number)
	require.Equal(t, models.OrderUnderReview, ev.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
