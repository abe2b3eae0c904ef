package uow

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	postgresrepo "github.com/kirinyoku/cinetix/internal/repository/postgres"
	"github.com/stretchr/testify/assert"
)

type fakeRunner struct {
	commitErr error
}

func (r fakeRunner) RunTx(ctx context.Context, opts *pgx.TxOptions, fn func(ctx context.Context, tx postgresrepo.DB) error) error {
	if err := fn(ctx, nil); err != nil {
		return err
	}
	return r.commitErr
}

func TestUoW_HooksRunAfterCommit(t *testing.T) {
	u := New(fakeRunner{}, func(postgresrepo.DB) string { return "tx" })

	var calls []string
	err := u.Do(context.Background(), func(ctx context.Context, tx string, after func(AfterCommit)) error {
		assert.Equal(t, "tx", tx)
		after(func(context.Context) { calls = append(calls, "first") })
		after(func(context.Context) { calls = append(calls, "second") })
		calls = append(calls, "body")
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"body", "first", "second"}, calls)
}

func TestUoW_HooksSkippedOnFailure(t *testing.T) {
	errBody := errors.New("body failed")
	errCommit := errors.New("commit failed")

	for _, tc := range []struct {
		name   string
		runner fakeRunner
		body   error
		want   error
	}{
		{"body error", fakeRunner{}, errBody, errBody},
		{"commit error", fakeRunner{commitErr: errCommit}, nil, errCommit},
	} {
		t.Run(tc.name, func(t *testing.T) {
			u := New(tc.runner, func(postgresrepo.DB) struct{} { return struct{}{} })

			ran := false
			err := u.Do(context.Background(), func(ctx context.Context, _ struct{}, after func(AfterCommit)) error {
				after(func(context.Context) { ran = true })
				return tc.body
			})

			assert.ErrorIs(t, err, tc.want)
			assert.False(t, ran)
		})
	}
}
