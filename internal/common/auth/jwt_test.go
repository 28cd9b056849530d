package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier(VerifierConfig{Secret: testSecret})

	valid, err := Sign(testSecret, Principal{UserID: "user-a", Role: "authenticated", Email: "a@example.com"}, time.Hour)
	require.NoError(t, err)
	expired, err := Sign(testSecret, Principal{UserID: "user-a"}, -time.Hour)
	require.NoError(t, err)
	wrongKey, err := Sign("another-secret", Principal{UserID: "user-a"}, time.Hour)
	require.NoError(t, err)
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		wantErr error
		wantID  string
	}{
		{name: "bearer prefix", raw: "Bearer " + valid, wantID: "user-a"},
		{name: "raw token", raw: valid, wantID: "user-a"},
		{name: "empty", raw: "", wantErr: ErrMissingToken},
		{name: "bearer only", raw: "Bearer ", wantErr: ErrMissingToken},
		{name: "expired", raw: expired, wantErr: ErrInvalidToken},
		{name: "wrong key", raw: wrongKey, wantErr: ErrInvalidToken},
		{name: "missing subject", raw: noSub, wantErr: ErrInvalidToken},
		{name: "garbage", raw: "not.a.jwt", wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := v.Verify(tt.raw)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, p.UserID)
			assert.Equal(t, "authenticated", p.Role)
			assert.Equal(t, "a@example.com", p.Email)
		})
	}
}

func TestVerifier_RejectsOtherAlgorithms(t *testing.T) {
	v := NewVerifier(VerifierConfig{Secret: testSecret})
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "user-a",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = v.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_NoSecretConfigured(t *testing.T) {
	tok, err := Sign(testSecret, Principal{UserID: "user-a"}, time.Hour)
	require.NoError(t, err)
	_, err = NewVerifier(VerifierConfig{}).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPrincipal_ContextAndAdmin(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	p := &Principal{UserID: "svc", Role: "service_role"}
	ctx := WithPrincipal(context.Background(), p)
	assert.Same(t, p, FromContext(ctx))

	assert.True(t, p.IsAdmin("service_role"))
	assert.False(t, (&Principal{Role: "authenticated"}).IsAdmin("service_role"))
	var nilP *Principal
	assert.False(t, nilP.IsAdmin("service_role"))
}
