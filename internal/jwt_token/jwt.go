package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"medvault/internal/platform/middleware"
	"medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
)

// Claims are the token claims issued by the identity service. Role and
// verification status ride inside the token so the core never queries the
// identity service per request.
type Claims struct {
	ActorID            string `json:"actor_id"`
	Role               string `json:"role"`
	VerificationStatus string `json:"verification_status"`
	jwt.RegisteredClaims
}

// JWTService validates identity-service tokens and, for development and
// tests, mints them.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey, issuer, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateToken mints a token for the given actor. Production deployments get
// tokens from the identity service; this exists for local runs and tests.
func (s *JWTService) GenerateToken(actorID domain.ActorID, role domain.Role, status domain.VerificationStatus, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ActorID:            actorID.String(),
		Role:               role.String(),
		VerificationStatus: status.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken checks signature and expiry and maps claims into the
// middleware's actor claims.
func (s *JWTService) ValidateToken(tokenString string) (*middleware.ActorClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	actorID, err := domain.ParseActorID(claims.ActorID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid actor id claim")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid role claim")
	}
	status, err := domain.ParseVerificationStatus(claims.VerificationStatus)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid verification status claim")
	}

	return &middleware.ActorClaims{
		ActorID:            actorID,
		Role:               role,
		VerificationStatus: status,
	}, nil
}
