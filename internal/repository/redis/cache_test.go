package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusView struct {
	Status string `json:"status"`
}

var (
	storeSha      = redis.NewScript(luaStoreIfCurrent).Hash()
	invalidateSha = redis.NewScript(luaInvalidate).Hash()
)

func TestGetOrSetJSON_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	mock.ExpectMGet("k", "k:gen").SetVal([]interface{}{`{"status":"approved"}`, "3"})

	v, err := GetOrSetJSON(context.Background(), c, "k", time.Minute, func(context.Context) (statusView, error) {
		t.Fatal("loader must not run on a hit")
		return statusView{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "approved", v.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_MissStoresUnderSeenGeneration(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	mock.ExpectMGet("k", "k:gen").SetVal([]interface{}{nil, "7"})
	mock.ExpectEvalSha(storeSha, []string{"k", "k:gen"}, "7", `{"status":"pending"}`, int64(60000)).SetVal(int64(1))

	calls := 0
	v, err := GetOrSetJSON(context.Background(), c, "k", time.Minute, func(context.Context) (statusView, error) {
		calls++
		return statusView{Status: "pending"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", v.Status)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_InvalidatedDuringLoadStillReturnsValue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	mock.ExpectMGet("k", "k:gen").SetVal([]interface{}{nil, nil})
	// generation moved on while loading, so the script skips the write
	mock.ExpectEvalSha(storeSha, []string{"k", "k:gen"}, "0", `{"status":"pending"}`, int64(60000)).SetVal(int64(0))

	v, err := GetOrSetJSON(context.Background(), c, "k", time.Minute, func(context.Context) (statusView, error) {
		return statusView{Status: "pending"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", v.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_CorruptValueReloads(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	mock.ExpectMGet("k", "k:gen").SetVal([]interface{}{`{not json`, "1"})
	mock.ExpectEvalSha(storeSha, []string{"k", "k:gen"}, "1", `{"status":"approved"}`, int64(60000)).SetVal(int64(1))

	v, err := GetOrSetJSON(context.Background(), c, "k", time.Minute, func(context.Context) (statusView, error) {
		return statusView{Status: "approved"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "approved", v.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_Errors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	mock.ExpectMGet("k", "k:gen").SetErr(errors.New("connection refused"))
	mock.ExpectMGet("k", "k:gen").SetVal([]interface{}{nil, nil})

	_, err := GetOrSetJSON(context.Background(), c, "k", time.Minute, func(context.Context) (statusView, error) {
		t.Fatal("loader must not run when redis is down")
		return statusView{}, nil
	})
	assert.ErrorContains(t, err, "connection refused")

	errBoom := errors.New("boom")
	_, err = GetOrSetJSON(context.Background(), c, "k", time.Minute, func(context.Context) (statusView, error) {
		return statusView{}, errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_InvalidatePaymentStatus(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := New(db)

	pref, pay := KeyStatusByPreference("PREF123"), KeyStatusByPayment("PAY456")
	mock.ExpectEvalSha(invalidateSha, []string{pref, pref + ":gen", pay, pay + ":gen"}, genTTL.Milliseconds()).SetVal(int64(2))

	require.NoError(t, c.InvalidatePaymentStatus(context.Background(), "PREF123", "PAY456"))
	require.NoError(t, c.InvalidatePaymentStatus(context.Background(), "", ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}
