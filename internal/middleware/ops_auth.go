// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tikitaka-go/pkg/log"
	"tikitaka-go/pkg/token"
)

const opsClaimsKey = "opsClaims"

// OpsAuth 校验 Authorization 头中的运维令牌，只有角色为 OPS 的令牌可以通过。
// 分享令牌不携带角色，在这里同样被拒绝。
func OpsAuth(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "请求未包含授权头", "data": nil})
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的授权头格式", "data": nil})
			return
		}

		claims, err := jwtManager.VerifyOpsToken(strings.TrimPrefix(authHeader, bearerPrefix))
		if err != nil {
			log.Warnf("[OpsAuth] 运维令牌校验失败: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效或已过期的 token", "data": nil})
			return
		}

		c.Set(opsClaimsKey, claims)
		c.Next()
	}
}

// OpsOperator 返回当前运维令牌中的操作者名称。
func OpsOperator(c *gin.Context) string {
	if v, ok := c.Get(opsClaimsKey); ok {
		if claims, ok := v.(*token.OpsClaims); ok {
			return claims.Operator
		}
	}
	return ""
}
