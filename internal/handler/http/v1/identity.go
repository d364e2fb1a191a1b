package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/hazard_reporting_system/internal/models"
	"github.com/sirupsen/logrus"
)

const identityContextKey = "identity"

// IdentityMiddleware извлекает идентичность пользователя из заголовков,
// которые проставляет внешний шлюз аутентификации. Сам сервис никого
// не аутентифицирует - он только потребляет уже разрешенную идентичность.
func IdentityMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := models.User{
			ID:     c.GetHeader("X-User-ID"),
			Role:   c.GetHeader("X-User-Role"),
			Region: c.GetHeader("X-User-Region"),
		}

		if user.ID == "" {
			log.Warn("Identity headers missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
			return
		}

		c.Set(identityContextKey, user)
		c.Next()
	}
}

// identityFromContext возвращает идентичность, положенную middleware
func identityFromContext(c *gin.Context) models.User {
	if v, ok := c.Get(identityContextKey); ok {
		if user, ok := v.(models.User); ok {
			return user
		}
	}
	return models.User{}
}
