package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims はAPIトークンのクレーム
type Claims struct {
	jwt.RegisteredClaims
}

// AuthMiddleware はHS256で署名されたトークンを検証する
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware は新しいAuthMiddlewareを作成する
// secretKey が空の場合は全てのリクエストを通す。
func NewAuthMiddleware(secretKey string) *AuthMiddleware {
	return &AuthMiddleware{secretKey: []byte(secretKey)}
}

// Enabled は認証が有効かを返す
func (am *AuthMiddleware) Enabled() bool {
	return len(am.secretKey) > 0
}

// GenerateToken は subject 用のトークンを発行する。ttl が0なら期限なし
func (am *AuthMiddleware) GenerateToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(am.secretKey)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return ss, nil
}

// VerifyToken はトークンを検証する
func (am *AuthMiddleware) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return am.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("トークンの解析に失敗: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("無効なトークン")
	}
	return claims, nil
}

// Handler はAuthorizationヘッダーかtokenクエリのトークンを確認する
// /api 以下だけを保護し、/health などは認証しない。
func (am *AuthMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.Enabled() || !strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Next()
			return
		}

		var token string
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
		if token == "" {
			token = c.Query("token")
		}

		if token == "" {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "認証トークンがありません")
			return
		}
		if _, err := am.VerifyToken(token); err != nil {
			abortWithError(c, http.StatusUnauthorized, "invalid_token", "認証トークンが無効です")
			return
		}

		c.Next()
	}
}
