package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/countersign/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestHS256SignVerify(t *testing.T) {
	t.Parallel()

	h, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	token, err := h.Sign(jwtx.NewAccessClaims(9, 3, time.Minute, time.Now()))
	require.NoError(t, err)

	claims, err := h.Verify(token)
	require.NoError(t, err)
	require.Equal(t, int64(9), claims.AccountID())
	require.Equal(t, int64(3), claims.OrganizationID)

	t.Run("expired", func(t *testing.T) {
		expired, err := h.Sign(jwtx.NewAccessClaims(9, 3, -time.Minute, time.Now()))
		require.NoError(t, err)

		_, err = h.Verify(expired)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := jwtx.NewHS256([]byte("ffffffffffffffffffffffffffffffff"))
		require.NoError(t, err)

		_, err = other.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("short secret rejected", func(t *testing.T) {
		_, err := jwtx.NewHS256([]byte("short"))
		require.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := h.Verify(strings.Repeat("x", 20))
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestDecodeUnverified(t *testing.T) {
	t.Parallel()

	h, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	token, err := h.Sign(jwtx.NewAccessClaims(5, 0, -time.Hour, time.Now()))
	require.NoError(t, err)

	// Decode ignores both the signature and exp.
	claims, err := jwtx.Decode(token)
	require.NoError(t, err)
	require.Equal(t, int64(5), claims.AccountID())
	require.True(t, claims.Expired(time.Now()))

	_, err = jwtx.Decode("not-a-jwt")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}
