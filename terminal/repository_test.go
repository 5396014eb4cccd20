package terminal

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hydraterm/hydraterm/internal/apperr"
	"github.com/hydraterm/hydraterm/terminal/models"
)

func TestRepository_Sessions(t *testing.T) {
	repo := NewRepository()
	require.NoError(t, repo.CreateSession(&models.Session{ID: "s1", ConnectedAt: time.Now()}))
	require.Error(t, repo.CreateSession(&models.Session{ID: "s1"}))
	require.Equal(t, 1, repo.CountSessions())

	d := 2
	req := models.MerchantRequest{Address: "a", Amount: decimal.NewFromInt(1), Decimals: &d}
	require.NoError(t, repo.SetRequest("s1", req))
	*req.Decimals = 5

	got, err := repo.GetSession("s1")
	require.NoError(t, err)
	require.Equal(t, 2, *got.Request.Decimals)

	require.NoError(t, repo.DeleteSession("s1"))
	_, err = repo.GetSession("s1")
	require.True(t, errors.Is(err, apperr.ErrNotFound))
	require.ErrorIs(t, repo.SetRequest("s1", req), ErrNotFound)
	require.ErrorIs(t, repo.DeleteSession("s1"), ErrNotFound)
}
