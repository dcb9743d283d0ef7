package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artmobile/artkit/pkg/token"
)

type payload struct {
	UserID string `json:"uid"`
	Exp    int64  `json:"exp"`
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	in := payload{UserID: "42", Exp: 1893456000}
	tok, err := token.Generate(in, "secret")
	require.NoError(t, err)

	out, err := token.Parse[payload](tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseRejections(t *testing.T) {
	t.Parallel()

	tok, err := token.Generate(payload{UserID: "42"}, "secret")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		_, err := token.Parse[payload](tok, "other-secret")
		assert.ErrorIs(t, err, token.ErrSignatureInvalid)
	})

	t.Run("missing separator", func(t *testing.T) {
		t.Parallel()
		_, err := token.Parse[payload]("nodothere", "secret")
		assert.ErrorIs(t, err, token.ErrInvalidToken)
	})

	t.Run("tampered payload", func(t *testing.T) {
		t.Parallel()
		_, err := token.Parse[payload]("eyJ1aWQiOiI5OSJ9."+tok[len(tok)-22:], "secret")
		assert.ErrorIs(t, err, token.ErrSignatureInvalid)
	})

	t.Run("bad base64", func(t *testing.T) {
		t.Parallel()
		_, err := token.Parse[payload]("!!!.###", "secret")
		assert.ErrorIs(t, err, token.ErrInvalidToken)
	})
}
