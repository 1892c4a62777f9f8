package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/studycircle/studycircle-api/pkg/helpers"
	"github.com/studycircle/studycircle-api/pkg/response"
)

// Auth validates the access token cookie and checks that the session it
// names is still live in Redis. On success it sets accountID, accountEmail,
// and accountNickname in the Gin context.
func Auth(rdb *redis.Client, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("access_token")
		if err != nil || token == "" {
			resp := response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			c.AbortWithStatusJSON(resp.Status, resp)
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			resp := response.Error[any](c, http.StatusUnauthorized, "invalid access token", nil)
			c.AbortWithStatusJSON(resp.Status, resp)
			return
		}

		key := "account:session:" + claims.AccountID
		data, err := rdb.HGetAll(c.Request.Context(), key).Result()
		if err != nil || len(data) == 0 {
			resp := response.Error[any](c, http.StatusUnauthorized, "session not found", nil)
			c.AbortWithStatusJSON(resp.Status, resp)
			return
		}
		// A nickname change rotates the session id; stale tokens die here.
		if sid := data["sid"]; sid != "" && sid != claims.SessionID {
			resp := response.Error[any](c, http.StatusUnauthorized, "session superseded", nil)
			c.AbortWithStatusJSON(resp.Status, resp)
			return
		}

		c.Set("accountID", data["account_id"])
		c.Set("accountEmail", data["email"])
		c.Set("accountNickname", data["nickname"])
		c.Next()
	}
}
