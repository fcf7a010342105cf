package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/creditledger/internal/catalog"
	"github.com/paperdesk/creditledger/internal/credits"
	"github.com/paperdesk/creditledger/internal/http/api/front/handlers"
	"github.com/paperdesk/creditledger/internal/models"
	"github.com/paperdesk/creditledger/internal/security"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers the authenticated credit routes for end users.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, signer *security.Signer, engine *credits.Engine, packages *catalog.Catalog) {
	if r == nil || db == nil || signer == nil || engine == nil {
		return
	}

	front := r.Group("/v0/front")
	authed := front.Group("")
	authed.Use(userAuthMiddleware(db, signer))

	creditsHandler := handlers.NewCreditsHandler(engine, packages)
	authed.GET("/credits/balance", creditsHandler.Balance)
	authed.POST("/credits/consume", creditsHandler.Consume)
	authed.GET("/credits/transactions", creditsHandler.Transactions)
	authed.GET("/credits/packages", creditsHandler.Packages)

	profileHandler := handlers.NewProfileHandler(db, engine)
	authed.GET("/profile", profileHandler.Get)
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "missing authorization header"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return "", "invalid authorization format"
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// userAuthMiddleware validates user JWTs and loads the user into context.
func userAuthMiddleware(db *gorm.DB, signer *security.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := bearerToken(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": problem})
			return
		}

		claims, errJWT := signer.ParseUser(token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errJWT.Error()})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).
			Select("id", "disabled").
			First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}
