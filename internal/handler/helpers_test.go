package handler

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cinema-ebooking/internal/config"
	"github.com/iliyamo/cinema-ebooking/internal/mail"
	"github.com/iliyamo/cinema-ebooking/internal/utils"
	"github.com/iliyamo/cinema-ebooking/internal/validation"
)

const (
	testSecret = "handler-test-secret"
	testKey    = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

var userCols = []string{"id", "email", "password_hash", "first_name", "last_name", "phone",
	"is_suspended", "email_verified_at", "role_id", "created_at", "updated_at"}

var codeCols = []string{"id", "user_id", "code", "expires_at", "used_at", "sent_at"}

func testConfig() config.Config {
	return config.Config{JWTSecret: testSecret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newCipher(t *testing.T) *utils.CardCipher {
	t.Helper()
	c, err := utils.NewCardCipher(testKey)
	require.NoError(t, err)
	return c
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	return e
}

func call(e *echo.Echo, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func hashOf(t *testing.T, plain string) []byte {
	t.Helper()
	h, err := utils.HashPassword(plain, bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func userRows(id uint64, email string, hash []byte, verified *time.Time, suspended bool, role uint8) *sqlmock.Rows {
	var v driver.Value
	if verified != nil {
		v = *verified
	}
	return sqlmock.NewRows(userCols).
		AddRow(id, email, hash, "Jane", "Doe", "555-0100", suspended, v, role, fixedNow, fixedNow)
}

// sealed matches a value encrypted with the test key.
type sealed struct {
	c    *utils.CardCipher
	want string
}

func (s sealed) Match(v driver.Value) bool {
	str, ok := v.(string)
	if !ok || !strings.HasPrefix(str, "v1:") {
		return false
	}
	plain, err := s.c.Decrypt(str)
	return err == nil && plain == s.want
}

// recordingDispatcher collects dispatched messages.  When failAt is n > 0
// the n-th dispatch fails.
type recordingDispatcher struct {
	mu     sync.Mutex
	msgs   []mail.Message
	calls  int
	failAt int
}

func (d *recordingDispatcher) Dispatch(_ context.Context, m mail.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failAt > 0 && d.calls == d.failAt {
		return errDispatch
	}
	d.msgs = append(d.msgs, m)
	return nil
}

func (d *recordingDispatcher) sent() []mail.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]mail.Message(nil), d.msgs...)
}

type dispatchError string

func (e dispatchError) Error() string { return string(e) }

const errDispatch = dispatchError("broker down")

var nopLog = zap.NewNop()
