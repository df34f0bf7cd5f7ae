// Package token 提供了用于生成和验证 JSON Web Tokens (JWT) 的功能。
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleOps 是运维令牌携带的角色。
const RoleOps = "OPS"

// JWTManager 负责管理 JWT 的生成和验证。
type JWTManager struct {
	secretKey []byte        // secretKey 用于签名和验证 token 的密钥
	shareDur  time.Duration // shareDur 定义了分享令牌的有效期
	opsDur    time.Duration // opsDur 定义了运维令牌的有效期
	now       func() time.Time
}

// ShareClaims 是分享链接令牌的声明，指向一段只读对话。
type ShareClaims struct {
	SessionID string `json:"sessionId"`
	PetID     string `json:"petId"`
	jwt.RegisteredClaims
}

// OpsClaims 是运维令牌的声明。
type OpsClaims struct {
	Operator string `json:"operator"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTManager 创建一个新的 JWTManager 实例。
// shareTokenTTLHours: 分享令牌的有效期（小时）。
// opsTokenExpireHours: 运维令牌的有效期（小时）。
func NewJWTManager(secret string, shareTokenTTLHours, opsTokenExpireHours int) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secret),
		shareDur:  time.Hour * time.Duration(shareTokenTTLHours),
		opsDur:    time.Hour * time.Duration(opsTokenExpireHours),
		now:       time.Now,
	}
}

func (m *JWTManager) registered(dur time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(dur)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
}

// GenerateShareToken 为一段对话生成分享令牌。
func (m *JWTManager) GenerateShareToken(sessionID, petID string) (string, error) {
	claims := ShareClaims{
		SessionID:        sessionID,
		PetID:            petID,
		RegisteredClaims: m.registered(m.shareDur),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// GenerateOpsToken 为运维人员生成访问令牌。
func (m *JWTManager) GenerateOpsToken(operator string) (string, error) {
	claims := OpsClaims{
		Operator:         operator,
		Role:             RoleOps,
		RegisteredClaims: m.registered(m.opsDur),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// VerifyShareToken 验证分享令牌并返回其声明。
func (m *JWTManager) VerifyShareToken(tokenString string) (*ShareClaims, error) {
	claims := &ShareClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.SessionID == "" || claims.PetID == "" {
		return nil, errors.New("invalid share token")
	}
	return claims, nil
}

// VerifyOpsToken 验证运维令牌，角色不是 OPS 时返回错误。
func (m *JWTManager) VerifyOpsToken(tokenString string) (*OpsClaims, error) {
	claims := &OpsClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Role != RoleOps {
		return nil, errors.New("token does not carry the ops role")
	}
	return claims, nil
}

func (m *JWTManager) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// 检查签名方法是否为 HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}
