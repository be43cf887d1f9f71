package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(id uuid.UUID) Claims {
	return Claims{
		UserID: id.String(),
		Role:   RolePatient,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "homevisit",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator("secret", "homevisit")
	id := uuid.New()

	r, err := v.Validate(sign(t, "secret", validClaims(id)))
	require.NoError(t, err)
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "patient:"+id.String(), r.Actor())
}

func TestValidator_Rejects(t *testing.T) {
	v := NewValidator("secret", "homevisit")
	id := uuid.New()

	expired := validClaims(id)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims(id)
	wrongIssuer.Issuer = "someone-else"

	badID := validClaims(id)
	badID.UserID = "42"

	noRole := validClaims(id)
	noRole.Role = ""

	for name, token := range map[string]string{
		"wrong secret": sign(t, "other", validClaims(id)),
		"expired":      sign(t, "secret", expired),
		"issuer":       sign(t, "secret", wrongIssuer),
		"user id":      sign(t, "secret", badID),
		"role":         sign(t, "secret", noRole),
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(token)
			assert.Error(t, err)
		})
	}
}

func TestRequesterContext(t *testing.T) {
	_, ok := RequesterFromContext(context.Background())
	assert.False(t, ok)

	r := &Requester{ID: uuid.New(), Role: RoleProfessional}
	got, ok := RequesterFromContext(WithRequester(context.Background(), r))
	require.True(t, ok)
	assert.Same(t, r, got)

	var none *Requester
	assert.Equal(t, "system", none.Actor())
}
