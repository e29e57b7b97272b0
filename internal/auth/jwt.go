// Package auth issues and validates operator tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/aeranixia/Inventory-Bot/internal/model"
)

// Claims identifies an operator and the guild the token is scoped to.
type Claims struct {
	OperatorID  int64  `json:"operator_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	GuildID     int64  `json:"guild_id"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// Actor is the ledger actor for the token holder.
func (c *Claims) Actor() model.Actor {
	name := c.DisplayName
	if name == "" {
		name = c.Username
	}
	return model.Actor{Name: name, ID: c.OperatorID}
}

// DefaultTokenTTL is the default token lifetime.
const DefaultTokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken is returned for tokens that fail parsing or validation.
var ErrInvalidToken = errors.New("invalid token")

// Issuer signs and validates HS256 tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

// NewIssuer creates an Issuer. A zero ttl uses DefaultTokenTTL and a nil
// clock the real one.
func NewIssuer(secret string, ttl time.Duration, clk clockwork.Clock) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, clock: clk}
}

// TTL returns the token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Generate signs a token for op with a fresh token id.
func (i *Issuer) Generate(op *model.Operator) (string, *Claims, error) {
	now := i.clock.Now()
	claims := &Claims{
		OperatorID:  op.ID,
		Username:    op.Username,
		DisplayName: op.DisplayName,
		GuildID:     op.GuildID,
		Role:        op.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprint(op.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return signed, claims, nil
}

// Validate parses tokenStr and checks its signature and expiry.
func (i *Issuer) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
