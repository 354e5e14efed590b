package server

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthConfig configures bearer authentication for the admin routes.
// Two credential schemes are supported and may be combined: HS256-signed
// JWTs validated against JWTSecret, and a single static operator token
// checked against its bcrypt hash. When neither is set the admin routes
// refuse all requests.
type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	AdminTokenHash string `yaml:"admin_token_hash" mapstructure:"admin_token_hash"`
}

// Enabled reports whether at least one credential scheme is configured.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != "" || a.AdminTokenHash != ""
}

// TokenValidator returns a validator for the middleware.Auth config. The
// returned function accepts a bearer token and yields its claims: JWT
// claims for signed tokens, a synthetic admin identity for the static one.
func (a AuthConfig) TokenValidator() func(token string) (map[string]interface{}, error) {
	return func(token string) (map[string]interface{}, error) {
		if a.JWTSecret != "" {
			claims, err := a.validateJWT(token)
			if err == nil {
				return claims, nil
			}
			if a.AdminTokenHash == "" {
				return nil, err
			}
		}
		if a.AdminTokenHash != "" {
			if err := bcrypt.CompareHashAndPassword([]byte(a.AdminTokenHash), []byte(token)); err == nil {
				return map[string]interface{}{
					"sub":         "admin",
					"auth_method": "static_token",
				}, nil
			}
		}
		return nil, fmt.Errorf("token rejected by all configured schemes")
	}
}

func (a AuthConfig) validateJWT(token string) (map[string]interface{}, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("jwt validation: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("jwt claims have unexpected type %T", parsed.Claims)
	}
	out := make(map[string]interface{}, len(claims)+1)
	for k, v := range claims {
		out[k] = v
	}
	out["auth_method"] = "jwt"
	return out, nil
}
