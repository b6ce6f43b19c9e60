package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"portfolio-chat/internal/domain"
)

const visitorTokenType = "visitor"

// SessionService emite y valida los tokens anonimos del widget.
type SessionService struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	now      func() time.Time
	throttle Throttle
}

type Claims struct {
	VisitorID string `json:"vid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

var (
	ErrSessionInvalid = errors.New("session token invalid")
	ErrSessionExpired = errors.New("session token expired")
	// ErrSessionThrottled evita que un cliente renueve su cupo de chat pidiendo tokens nuevos.
	ErrSessionThrottled = errors.New("too many sessions from this client")
)

func NewSessionService(secret string, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "portfolio-chat",
		now:    time.Now,
	}
}

// WithIssueThrottle limita cuantas sesiones nuevas puede pedir un mismo cliente.
func (s *SessionService) WithIssueThrottle(t Throttle) *SessionService {
	s.throttle = t
	return s
}

// IssueForClient emite una sesion si clientKey (la IP) todavia tiene cupo.
func (s *SessionService) IssueForClient(ctx context.Context, clientKey string) (domain.VisitorSession, error) {
	if s.throttle != nil {
		if res := s.throttle.Take(ctx, clientKey); !res.Allowed {
			return domain.VisitorSession{}, &ThrottledError{Err: ErrSessionThrottled, RetryAfter: res.RetryAfter}
		}
	}
	return s.Issue()
}

// Issue crea una sesion nueva con un id de visitante aleatorio.
func (s *SessionService) Issue() (domain.VisitorSession, error) {
	if len(s.secret) == 0 {
		return domain.VisitorSession{}, ErrSessionInvalid
	}
	now := s.now().UTC()
	visitorID := uuid.NewString()
	claims := Claims{
		VisitorID: visitorID,
		TokenType: visitorTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   visitorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return domain.VisitorSession{}, err
	}
	return domain.VisitorSession{
		ID:        visitorID,
		Token:     token,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}, nil
}

// Parse valida el token y devuelve sus claims.
func (s *SessionService) Parse(token string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrSessionInvalid
	}
	if strings.TrimSpace(token) == "" {
		return Claims{}, ErrSessionInvalid
	}
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrSessionExpired
		}
		return Claims{}, ErrSessionInvalid
	}
	if !s.isValidClaims(claims) {
		return Claims{}, ErrSessionInvalid
	}
	return claims, nil
}

func (s *SessionService) isValidClaims(claims Claims) bool {
	if claims.TokenType != visitorTokenType {
		return false
	}
	if strings.TrimSpace(claims.VisitorID) == "" {
		return false
	}
	if claims.Subject != claims.VisitorID {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
