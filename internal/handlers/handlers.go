package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/myeljoud/lireddit-server/internal/mailer"
	"github.com/myeljoud/lireddit-server/internal/tokens"
	"github.com/myeljoud/lireddit-server/internal/votes"
)

// Handler combines all handler types
type Handler struct {
	Auth *AuthHandler
	Post *PostHandler
}

// Dependencies carries everything the handlers need.
type Dependencies struct {
	DB          *gorm.DB
	Votes       *votes.Service
	ResetTokens tokens.ResetTokenStore
	Mailer      mailer.Mailer
	JWTSecret   []byte
	// ResetURLBase is the frontend change-password page reset links point at.
	ResetURLBase string
	Logger       *zap.Logger
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{
		Auth: NewAuthHandler(deps.DB, AuthConfig{
			JWTSecret:    deps.JWTSecret,
			ResetTokens:  deps.ResetTokens,
			Mailer:       deps.Mailer,
			ResetURLBase: deps.ResetURLBase,
			Logger:       logger,
		}),
		Post: NewPostHandler(deps.DB, deps.Votes, logger),
	}
}

func extractUserID(c *gin.Context) (int, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case uint:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// fieldErrors builds the {"errors": [{"field", "message"}]} shape the
// client renders next to form inputs.
func fieldErrors(field, message string) gin.H {
	return gin.H{
		"errors": []gin.H{
			{"field": field, "message": message},
		},
	}
}
