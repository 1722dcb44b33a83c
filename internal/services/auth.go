package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/commercecrafted-backend/internal/pkg/ctxutil"
	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// JWTClaims is the bearer token issued by the web app's session layer.
type JWTClaims struct {
	Email        string           `json:"email,omitempty"`
	Tier         string           `json:"tier,omitempty"`
	Role         string           `json:"role,omitempty"`
	SubExpiresAt *jwt.NumericDate `json:"sub_expires_at,omitempty"`
	jwt.RegisteredClaims
}

type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	IssueToken(rd ctxutil.RequestData, ttl time.Duration) (string, error)
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey []byte
	issuer       string
	now          func() time.Time
}

func NewAuthService(log *logger.Logger, jwtSecretKey, issuer string) AuthService {
	return &authService{
		log:          log.With("service", "AuthService"),
		jwtSecretKey: []byte(jwtSecretKey),
		issuer:       strings.TrimSpace(issuer),
		now:          time.Now,
	}
}

func (as *authService) IssueToken(rd ctxutil.RequestData, ttl time.Duration) (string, error) {
	if strings.TrimSpace(rd.UserID) == "" {
		return "", fmt.Errorf("issue token: missing user id: %w", apperrors.ErrValidation)
	}
	now := as.now()
	claims := JWTClaims{
		Email: rd.Email,
		Tier:  NormalizeTier(rd.Tier),
		Role:  strings.ToUpper(strings.TrimSpace(rd.Role)),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   rd.UserID,
			Issuer:    as.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if rd.SubscriptionExpiresAt != nil {
		claims.SubExpiresAt = jwt.NewNumericDate(*rd.SubscriptionExpiresAt)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(as.jwtSecretKey)
}

// SetContextFromToken verifies an HS256 token and attaches the caller to ctx.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if strings.TrimSpace(tokenString) == "" {
		return ctx, fmt.Errorf("missing token: %w", apperrors.ErrUnauthorized)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(as.now),
		jwt.WithExpirationRequired(),
	}
	if as.issuer != "" {
		opts = append(opts, jwt.WithIssuer(as.issuer))
	}
	claims := &JWTClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	}, opts...)
	if err != nil || parsed == nil || !parsed.Valid {
		as.log.Debug("token rejected", "error", err)
		return ctx, fmt.Errorf("invalid or expired token: %w", apperrors.ErrUnauthorized)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return ctx, fmt.Errorf("token has no subject: %w", apperrors.ErrUnauthorized)
	}
	rd := &ctxutil.RequestData{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   strings.ToUpper(strings.TrimSpace(claims.Role)),
		Tier:   NormalizeTier(claims.Tier),
	}
	if claims.SubExpiresAt != nil {
		t := claims.SubExpiresAt.Time
		rd.SubscriptionExpiresAt = &t
	}
	return ctxutil.WithRequestData(ctx, rd), nil
}
