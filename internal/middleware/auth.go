// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/utils"
)

// AuthRequired resolves the bearer identity issued by the sign-in provider
// into user_id, role and retailer_ids on the context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, "Authentication required")
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.UnauthorizedResponse(c, "Invalid authorization header")
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(parts[1])
		if err != nil {
			utils.UnauthorizedResponse(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Set("retailer_ids", claims.RetailerIDs)
		c.Next()
	}
}

// RequireRoles aborts with 403 unless the caller holds one of roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := utils.GetRoleFromContext(c)
		for _, allowed := range roles {
			if models.Role(role) == allowed {
				c.Next()
				return
			}
		}
		utils.ForbiddenResponse(c, "Insufficient permissions")
		c.Abort()
	}
}

// RequireStaff admits SALES_TEAM and CSS_ADMIN.
func RequireStaff() gin.HandlerFunc {
	return RequireRoles(models.RoleSalesTeam, models.RoleCSSAdmin)
}

func RequireClient() gin.HandlerFunc {
	return RequireRoles(models.RoleClientViewer, models.RoleClientAdmin)
}

// CanAccessRetailer reports whether the caller may act on retailerID. Staff
// reach every retailer; clients only those in their token.
func CanAccessRetailer(c *gin.Context, retailerID string) bool {
	role, ok := utils.GetRoleFromContext(c)
	if !ok {
		return false
	}
	if models.Role(role).IsStaff() {
		return true
	}
	if !models.Role(role).IsClient() {
		return false
	}
	for _, id := range utils.GetRetailerIDsFromContext(c) {
		if id == retailerID {
			return true
		}
	}
	return false
}

// RetailerAccess guards routes carrying the retailer id in param.
func RetailerAccess(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CanAccessRetailer(c, c.Param(param)) {
			utils.ForbiddenResponse(c, "No access to this retailer")
			c.Abort()
			return
		}
		c.Next()
	}
}
