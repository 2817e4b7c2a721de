package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

func TestAuthRetrySingleSuccessfulRefresh(t *testing.T) {
	client := &fakeClient{}
	r := newAuthRetry(client)
	account := &domain.Account{ID: "acc"}

	require.True(t, r.Attempt(context.Background(), account))
	require.Equal(t, 1, client.refreshCalls)
	require.False(t, r.Failed())

	// The machine never re-enters not_attempted, so a second caller in
	// the same cycle is refused without touching the remote API.
	require.False(t, r.Attempt(context.Background(), account))
	require.Equal(t, 1, client.refreshCalls)
}

func TestAuthRetryRefreshErrorMarksFailed(t *testing.T) {
	client := &fakeClient{
		refreshAuth: func(context.Context, *domain.Account) (bool, error) {
			return false, errors.New("refresh rejected")
		},
	}
	r := newAuthRetry(client)

	require.False(t, r.Attempt(context.Background(), &domain.Account{ID: "acc"}))
	require.True(t, r.Failed())

	require.False(t, r.Attempt(context.Background(), &domain.Account{ID: "acc"}))
	require.Equal(t, 1, client.refreshCalls)
}

func TestAuthRetryRefreshDeclinedMarksFailed(t *testing.T) {
	client := &fakeClient{
		refreshAuth: func(context.Context, *domain.Account) (bool, error) {
			return false, nil
		},
	}
	r := newAuthRetry(client)

	require.False(t, r.Attempt(context.Background(), &domain.Account{ID: "acc"}))
	require.True(t, r.Failed())
}

func TestAuthRetryFreshPerCycle(t *testing.T) {
	client := &fakeClient{}

	first := newAuthRetry(client)
	require.True(t, first.Attempt(context.Background(), &domain.Account{ID: "acc"}))

	second := newAuthRetry(client)
	require.True(t, second.Attempt(context.Background(), &domain.Account{ID: "acc"}))
	require.Equal(t, 2, client.refreshCalls)
}
