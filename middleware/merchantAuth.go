package middleware

import (
	"net/http"
	"strings"
	"time"

	"cardpresent/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// JWTAuthMerchantMiddleware validates the merchant bearer token. Validated
// tokens are cached by hash in Redis so repeat requests skip verification;
// authCache may be nil.
func JWTAuthMerchantMiddleware(authCache *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := zap.L()
		ctx := c.Request.Context()

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		cacheKey := utils.AuthCachePrefix + utils.HashToken(tokenString)

		if authCache != nil {
			cached, err := authCache.Get(ctx, cacheKey).Result()
			if err == nil {
				merchantID, siteID, _ := strings.Cut(cached, "|")
				setMerchant(c, utils.MerchantClaims{MerchantID: merchantID, SiteID: siteID})
				c.Next()
				return
			}
			if err != redis.Nil {
				logger.Error("Error checking auth cache", zap.Error(err))
			}
		}

		claims, err := utils.ExtractMerchantClaims(tokenString)
		if err != nil {
			logger.Debug("Rejected merchant token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		if authCache != nil {
			// Never cache past the token's own expiry.
			ttl := utils.AuthCacheTTL
			if exp := claims.ExpiresAt; !exp.IsZero() && time.Until(exp) < ttl {
				ttl = time.Until(exp)
			}
			if ttl > 0 {
				if err := authCache.Set(ctx, cacheKey, claims.MerchantID+"|"+claims.SiteID, ttl).Err(); err != nil {
					logger.Error("Failed to set auth cache", zap.Error(err))
				}
			}
		}

		setMerchant(c, claims)
		c.Next()
	}
}

func setMerchant(c *gin.Context, claims utils.MerchantClaims) {
	c.Set(utils.ContextMerchantID, claims.MerchantID)
	c.Set(utils.ContextSiteID, claims.SiteID)
}
