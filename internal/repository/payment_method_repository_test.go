package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ebooking/internal/model"
)

var paymentCols = []string{"id", "user_id", "provider", "provider_token", "brand", "last4",
	"exp_month", "exp_year", "is_default", "billing_address", "created_at", "updated_at"}

// sealedArg captures the encrypted value written for a column.
type sealedArg struct{ got *string }

func (a sealedArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if ok {
		*a.got = s
	}
	return ok && strings.HasPrefix(s, "v1:")
}

func TestCreatePaymentMethodEncryptsFields(t *testing.T) {
	db, mock := newMock(t)
	cipher := newCipher(t)
	repo := NewPaymentMethodRepo(db, cipher)
	var token, last4 string

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM payment_methods").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectExec("INSERT INTO payment_methods").
		WithArgs(uint64(5), "dev", sealedArg{&token}, "visa", sealedArg{&last4}, nil, nil, false, nil).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	id, err := repo.Create(context.Background(), model.PaymentMethod{UserID: 5, ProviderToken: "tok_visa_4242", Brand: "visa", Last4: "4242"})
	require.NoError(t, err)
	assert.Equal(t, uint64(11), id)
	require.NoError(t, mock.ExpectationsWereMet())

	plain, err := cipher.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "tok_visa_4242", plain)
	plain, err = cipher.Decrypt(last4)
	require.NoError(t, err)
	assert.Equal(t, "4242", plain)
}

func TestCreatePaymentMethodFourthRejected(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentMethodRepo(db, newCipher(t))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").WithArgs(uint64(5)).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), model.PaymentMethod{UserID: 5, ProviderToken: "t"})
	var le *LimitError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, model.MaxPaymentMethods, le.Limit)
	assert.Equal(t, 3, le.Current)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUserDecryptsAndPassesLegacy(t *testing.T) {
	db, mock := newMock(t)
	cipher := newCipher(t)
	repo := NewPaymentMethodRepo(db, cipher)
	now := time.Now().UTC()
	sealed, err := cipher.Encrypt("1111")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = ? ORDER BY created_at DESC")).WithArgs(uint64(5)).WillReturnRows(
		sqlmock.NewRows(paymentCols).
			AddRow(2, 5, "dev", "tok_legacy", "amex", "0005", nil, nil, false, "", now, now).
			AddRow(1, 5, "dev", "tok", "visa", sealed, 12, 2031, true, "{}", now, now))

	list, err := repo.ListByUser(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "0005", list[0].Last4)
	assert.Nil(t, list[0].ExpMonth)
	assert.Equal(t, "1111", list[1].Last4)
	require.NotNil(t, list[1].ExpMonth)
	assert.Equal(t, 12, *list[1].ExpMonth)
}

func TestUpdateBillingAddressMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentMethodRepo(db, newCipher(t))

	mock.ExpectExec("UPDATE payment_methods SET billing_address").WithArgs("{}", uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateBillingAddress(context.Background(), 8, "{}"), ErrNotFound)
}

func TestDeletePaymentMethodReportsCount(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentMethodRepo(db, newCipher(t))

	mock.ExpectExec("DELETE FROM payment_methods").WithArgs(uint64(8)).WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := repo.Delete(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
