package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MembershipChecker — проверка, состоит ли пользователь на сервере.
type MembershipChecker interface {
	CheckMembership(ctx context.Context, userID string) bool
}

type MemberHandler struct {
	members MembershipChecker
	log     *zap.Logger
}

func NewMemberHandler(members MembershipChecker, log *zap.Logger) *MemberHandler {
	return &MemberHandler{members: members, log: log.Named("http")}
}

type checkMemberRequest struct {
	DiscordID string `json:"discordId"`
}

// CheckMember обрабатывает POST /check-member. Ошибка поиска отвечает
// isOnServer=false, а не статусом ошибки.
func (h *MemberHandler) CheckMember(c *gin.Context) {
	var req checkMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	h.log.Info("member verification", zap.String("discord_id", req.DiscordID))
	c.JSON(http.StatusOK, gin.H{"isOnServer": h.members.CheckMembership(c.Request.Context(), req.DiscordID)})
}

// BearerAuth rejects requests whose Authorization header is not exactly
// "Bearer <secret>".
func BearerAuth(secret string, log *zap.Logger) gin.HandlerFunc {
	want := []byte("Bearer " + secret)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader("Authorization"))
		if secret == "" || subtle.ConstantTimeCompare(got, want) != 1 {
			log.Warn("authentication failed", zap.String("path", c.FullPath()), zap.String("remote", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
			return
		}
		c.Next()
	}
}
