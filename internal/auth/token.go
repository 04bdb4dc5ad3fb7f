package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/theatre-service/internal/domain"
	apperrors "github.com/spec-kit/theatre-service/pkg/util/errorutil"
)

// TokenSecrets holds one signing secret per token kind.
type TokenSecrets struct {
	User   []byte
	Email  []byte
	Ticket []byte
}

// TokenTTLs holds default lifetimes. Ticket tokens always expire with their
// ticket, so they have no TTL of their own.
type TokenTTLs struct {
	User  time.Duration
	Email time.Duration
}

// Claims are the verified contents of a token.
type Claims struct {
	Kind      domain.TokenKind
	ID        uuid.UUID
	Subject   uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenData struct {
	Kind domain.TokenKind `json:"t"`
	ID   uuid.UUID        `json:"v"`
}

type tokenClaims struct {
	Data tokenData `json:"dat"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies HS256 tokens for the three trust domains.
type TokenCodec struct {
	secrets map[domain.TokenKind][]byte
	ttls    TokenTTLs
	now     func() time.Time
}

// NewTokenCodec builds a codec. now may be nil, in which case time.Now is used.
func NewTokenCodec(secrets TokenSecrets, ttls TokenTTLs, now func() time.Time) (*TokenCodec, error) {
	if len(secrets.User) == 0 || len(secrets.Email) == 0 || len(secrets.Ticket) == 0 {
		return nil, errors.New("token secrets must not be empty")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenCodec{
		secrets: map[domain.TokenKind][]byte{
			domain.TokenKindUser:   secrets.User,
			domain.TokenKindEmail:  secrets.Email,
			domain.TokenKindTicket: secrets.Ticket,
		},
		ttls: ttls,
		now:  now,
	}, nil
}

// Issue signs a token of kind for subjectID that expires after ttl.
func (c *TokenCodec) Issue(kind domain.TokenKind, subjectID uuid.UUID, ttl time.Duration) (string, time.Time, error) {
	now := c.now()
	return c.sign(kind, subjectID, subjectID, now, now.Add(ttl))
}

// IssueUser signs an Auth token with the configured lifetime.
func (c *TokenCodec) IssueUser(userID uuid.UUID) (string, time.Time, error) {
	return c.Issue(domain.TokenKindUser, userID, c.ttls.User)
}

// IssueEmail signs an email verification token with the configured lifetime.
func (c *TokenCodec) IssueEmail(userID uuid.UUID) (string, time.Time, error) {
	return c.Issue(domain.TokenKindEmail, userID, c.ttls.Email)
}

// IssueTicket signs a redemption token that expires together with the ticket.
func (c *TokenCodec) IssueTicket(ticket *domain.Ticket) (string, time.Time, error) {
	return c.sign(domain.TokenKindTicket, ticket.ID, ticket.OwnerID, c.now(), ticket.ExpiresAt)
}

func (c *TokenCodec) sign(kind domain.TokenKind, id, subject uuid.UUID, issuedAt, expiresAt time.Time) (string, time.Time, error) {
	secret, ok := c.secrets[kind]
	if !ok {
		return "", time.Time{}, apperrors.NewInternalError(errors.New("unknown token kind " + string(kind)))
	}
	claims := &tokenClaims{
		Data: tokenData{Kind: kind, ID: id},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return tokenString, claims.ExpiresAt.Time, nil
}

// Verify checks the signature with the secret for kind, rejects tokens whose
// tag is not kind and compares expiry against the codec clock. The library's
// own time validation is disabled so the clock comparison is the only one.
func (c *TokenCodec) Verify(kind domain.TokenKind, tokenStr string) (*Claims, error) {
	secret, ok := c.secrets[kind]
	if !ok {
		return nil, apperrors.NewInvalid("unknown token kind")
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, apperrors.NewInvalid("invalid token")
	}

	raw, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, apperrors.NewInvalid("invalid token claims")
	}
	if raw.Data.Kind != kind {
		return nil, apperrors.NewInvalid("token kind mismatch")
	}
	if raw.Data.ID == uuid.Nil || raw.IssuedAt == nil || raw.ExpiresAt == nil {
		return nil, apperrors.NewInvalid("incomplete token claims")
	}
	subject, err := uuid.Parse(raw.Subject)
	if err != nil {
		return nil, apperrors.NewInvalid("invalid token subject")
	}

	if c.now().After(raw.ExpiresAt.Time) {
		return nil, apperrors.NewExpired("token expired")
	}

	return &Claims{
		Kind:      raw.Data.Kind,
		ID:        raw.Data.ID,
		Subject:   subject,
		IssuedAt:  raw.IssuedAt.Time,
		ExpiresAt: raw.ExpiresAt.Time,
	}, nil
}
