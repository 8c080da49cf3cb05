package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	// DefaultIssuer is the iss claim of every session token
	DefaultIssuer = "stylesync"
	// DefaultTTL is how long a session token stays valid
	DefaultTTL = 30 * 24 * time.Hour
	// MinSecretLength is the minimum HMAC secret length in bytes
	MinSecretLength = 32
)

// ErrInvalidToken is returned for tokens that fail verification
var ErrInvalidToken = errors.New("invalid or expired session token")

// Claims are the verified contents of a session token
type Claims struct {
	SessionID string    `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issuer mints and verifies HS256 session tokens. The session id is the
// token subject.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. A ttl of zero uses DefaultTTL.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d characters", MinSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), issuer: DefaultIssuer, ttl: ttl, now: time.Now}, nil
}

// NewSessionID returns a fresh random session id
func NewSessionID() string {
	return uuid.NewString()
}

// Issue mints a token for sessionID
func (i *Issuer) Issue(sessionID string) (string, *Claims, error) {
	now := i.now().UTC().Truncate(time.Second)
	claims := &Claims{SessionID: sessionID, IssuedAt: now, ExpiresAt: now.Add(i.ttl)}

	token, err := jwt.NewBuilder().
		Issuer(i.issuer).
		Subject(sessionID).
		IssuedAt(claims.IssuedAt).
		Expiration(claims.ExpiresAt).
		JwtID(uuid.NewString()).
		Build()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build session token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, i.secret))
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return string(signed), claims, nil
}

// Verify checks the signature, issuer and expiry of a token
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, i.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(i.issuer),
		jwt.WithClock(jwt.ClockFunc(i.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if token.Subject() == "" {
		return nil, fmt.Errorf("%w: token missing subject claim", ErrInvalidToken)
	}
	return &Claims{
		SessionID: token.Subject(),
		IssuedAt:  token.IssuedAt(),
		ExpiresAt: token.Expiration(),
	}, nil
}
