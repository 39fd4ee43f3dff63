// internal/handlers/access_token.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/shareview/insights-backend/internal/services"
	"github.com/shareview/insights-backend/internal/utils"
)

// AccessTokenHandler lets staff manage a retailer's guest tokens. Routes are
// mounted behind RetailerAccess("id").
type AccessTokenHandler struct {
	accessService *services.AccessService
	publicBaseURL string
}

func NewAccessTokenHandler(accessService *services.AccessService, publicBaseURL string) *AccessTokenHandler {
	return &AccessTokenHandler{
		accessService: accessService,
		publicBaseURL: publicBaseURL,
	}
}

func (h *AccessTokenHandler) accessURL(token string) string {
	return h.publicBaseURL + "/access/" + token
}

// GET /retailers/:id/access-token
func (h *AccessTokenHandler) Current(c *gin.Context) {
	info, err := h.accessService.Current(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, info)
}

// POST /retailers/:id/access-token
func (h *AccessTokenHandler) Issue(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.IssueTokenRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request body", err.Error())
			return
		}
	}
	req.RetailerID = c.Param("id")

	issued, err := h.accessService.Issue(c.Request.Context(), &req, actorID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"token": issued,
		"url":   h.accessURL(issued.Token),
	})
}

// DELETE /retailers/:id/access-token
func (h *AccessTokenHandler) RevokeAll(c *gin.Context) {
	revoked, err := h.accessService.RevokeAll(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"revoked": revoked})
}

// DELETE /retailers/:id/access-token/:tokenId
func (h *AccessTokenHandler) RevokeOne(c *gin.Context) {
	tokenID, ok := uuidParam(c, "tokenId", "access token")
	if !ok {
		return
	}

	if err := h.accessService.RevokeOne(c.Request.Context(), c.Param("id"), tokenID); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"revoked": 1})
}
