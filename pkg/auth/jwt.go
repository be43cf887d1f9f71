package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles a requester may carry.
const (
	RolePatient      = "patient"
	RoleProfessional = "professional"
	RoleAdmin        = "admin"
)

// Claims is the token body issued by the identity service.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Requester is the authenticated caller of a request.
type Requester struct {
	ID   uuid.UUID
	Role string
}

// Validator checks HS256 tokens. Issuing tokens is the identity service's job.
type Validator struct {
	secret []byte
	issuer string
}

func NewValidator(secret, issuer string) *Validator {
	return &Validator{secret: []byte(secret), issuer: issuer}
}

// Validate parses and validates the signature, expiry and issuer of a token.
func (v *Validator) Validate(tokenString string) (*Requester, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user_id claim: %w", err)
	}
	if claims.Role == "" {
		return nil, errors.New("missing role claim")
	}
	return &Requester{ID: id, Role: claims.Role}, nil
}

type ctxKey struct{}

func WithRequester(ctx context.Context, r *Requester) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

func RequesterFromContext(ctx context.Context) (*Requester, bool) {
	r, ok := ctx.Value(ctxKey{}).(*Requester)
	return r, ok && r != nil
}

// Actor renders the requester for event metadata, e.g. "patient:<id>".
func (r *Requester) Actor() string {
	if r == nil {
		return "system"
	}
	return r.Role + ":" + r.ID.String()
}
