package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	h := &HealthHandler{DB: db, Redis: rdb}
	e := newEcho()
	e.GET("/healthz", h.Health)

	mock.ExpectPing()
	rr := call(e, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true,"db":"up","redis":"up"}`, rr.Body.String())

	mr.Close()
	mock.ExpectPing().WillReturnError(errors.New("gone"))
	rr = call(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"ok":false,"db":"down","redis":"down"}`, rr.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}
