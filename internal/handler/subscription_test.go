package handler

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ebooking/internal/mail"
	"github.com/iliyamo/cinema-ebooking/internal/repository"
)

var subscriberCols = []string{"id", "first_name", "last_name", "email", "updated_at"}

func newSubscriptionFixture(t *testing.T, d *recordingDispatcher) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	h := NewSubscriptionHandler(repository.NewSubscriptionRepo(db), repository.NewPromotionRepo(db), d, nopLog)
	e := newEcho()
	e.GET("/api/subscribed-users", h.SubscribedUsers)
	e.POST("/api/send-promotion/:id", h.SendPromotion)
	t.Cleanup(func() { require.NoError(t, mock.ExpectationsWereMet()) })
	return e, mock
}

func expectSubscribers(mock sqlmock.Sqlmock, n int) {
	rows := sqlmock.NewRows(subscriberCols)
	emails := []string{"a@b.co", "c@d.co", "e@f.co"}
	for i := 0; i < n; i++ {
		rows.AddRow(i+1, "Sub", "", emails[i], fixedNow)
	}
	mock.ExpectQuery("FROM promotion_subscriptions ps JOIN users u").WillReturnRows(rows)
}

func expectPromotion(mock sqlmock.Sqlmock, id uint64) {
	mock.ExpectQuery("FROM promotions WHERE id").WithArgs(id).
		WillReturnRows(sqlmock.NewRows(promotionCols).AddRow(id, "Spring", "Matinee deal", 15.0, nil, fixedNow, fixedNow.AddDate(0, 1, 0), true))
	mock.ExpectQuery("FROM promotion_codes").WillReturnRows(sqlmock.NewRows(promoCodeCols))
}

func TestSubscribedUsers(t *testing.T) {
	e, mock := newSubscriptionFixture(t, &recordingDispatcher{})
	expectSubscribers(mock, 2)

	rr := call(e, http.MethodGet, "/api/subscribed-users", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Len(t, decode(t, rr)["users"], 2)
}

func TestSendPromotionNoSubscribers(t *testing.T) {
	d := &recordingDispatcher{}
	e, mock := newSubscriptionFixture(t, d)
	expectSubscribers(mock, 0)

	rr := call(e, http.MethodPost, "/api/send-promotion/5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	out := decode(t, rr)
	assert.Equal(t, "no_subscribers", out["status"])
	assert.Equal(t, float64(0), out["sentCount"])
	assert.Empty(t, d.sent())
}

func TestSendPromotionToAll(t *testing.T) {
	d := &recordingDispatcher{}
	e, mock := newSubscriptionFixture(t, d)
	expectSubscribers(mock, 3)
	expectPromotion(mock, 5)

	rr := call(e, http.MethodPost, "/api/send-promotion/5", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decode(t, rr)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, float64(3), out["sentCount"])

	sent := d.sent()
	require.Len(t, sent, 3)
	for _, m := range sent {
		assert.Equal(t, mail.KindPromotion, m.Kind)
		assert.Contains(t, m.Body, "15% off")
	}
}

func TestSendPromotionStopsAtFirstFailure(t *testing.T) {
	d := &recordingDispatcher{failAt: 2}
	e, mock := newSubscriptionFixture(t, d)
	expectSubscribers(mock, 3)
	expectPromotion(mock, 5)

	rr := call(e, http.MethodPost, "/api/send-promotion/5", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	out := decode(t, rr)
	assert.Equal(t, false, out["ok"])
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, float64(1), out["sentCount"])
	assert.Equal(t, 2, d.calls)
}

func TestSendPromotionUnknown(t *testing.T) {
	e, mock := newSubscriptionFixture(t, &recordingDispatcher{})
	expectSubscribers(mock, 1)
	mock.ExpectQuery("FROM promotions WHERE id").WillReturnRows(sqlmock.NewRows(promotionCols))

	rr := call(e, http.MethodPost, "/api/send-promotion/77", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
