package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/myeljoud/lireddit-server/internal/mailer"
	"github.com/myeljoud/lireddit-server/internal/models"
	"github.com/myeljoud/lireddit-server/internal/tokens"
)

var emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,4}$`)

type AuthHandler struct {
	db           *gorm.DB
	jwtSecret    []byte
	resetTokens  tokens.ResetTokenStore
	mailer       mailer.Mailer
	resetURLBase string
	logger       *zap.Logger
}

type AuthConfig struct {
	JWTSecret    []byte
	ResetTokens  tokens.ResetTokenStore
	Mailer       mailer.Mailer
	ResetURLBase string
	Logger       *zap.Logger
}

func NewAuthHandler(db *gorm.DB, cfg AuthConfig) *AuthHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthHandler{
		db:           db,
		jwtSecret:    cfg.JWTSecret,
		resetTokens:  cfg.ResetTokens,
		mailer:       cfg.Mailer,
		resetURLBase: cfg.ResetURLBase,
		logger:       logger,
	}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if field, message, ok := validateRegister(input); !ok {
		c.JSON(http.StatusBadRequest, fieldErrors(field, message))
		return
	}

	// Map duplicates to field errors before hitting the unique indexes
	var existing models.User
	if err := h.db.Where("email = ?", input.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, fieldErrors("email", "This email is taken"))
		return
	}
	if err := h.db.Where("username = ?", input.Username).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, fieldErrors("username", "This username is taken"))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Username: input.Username,
		Email:    input.Email,
		Password: string(hashedPassword),
	}

	if err := h.db.Create(&user).Error; err != nil {
		// A concurrent registration can still win the race on the
		// unique index between the check above and this insert.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusBadRequest, fieldErrors("username", "This username or email is taken"))
			return
		}
		h.logger.Error("failed to create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	tokenString, err := h.signToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"token":   tokenString,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		},
	})
}

// Login handles user login by username or email
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.UsernameOrEmail == "" {
		c.JSON(http.StatusBadRequest, fieldErrors("username_or_email", "You are required to provide a username or an email"))
		return
	}
	if input.Password == "" {
		c.JSON(http.StatusBadRequest, fieldErrors("password", "Password is required"))
		return
	}

	var user models.User
	err := h.db.Where("username = ? OR email = ?", input.UsernameOrEmail, input.UsernameOrEmail).First(&user).Error
	if err != nil {
		c.JSON(http.StatusUnauthorized, fieldErrors("username_or_email", "There is no user with the given credentials"))
		return
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, fieldErrors("username_or_email", "There is no user with the given credentials"))
		return
	}

	tokenString, err := h.signToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   tokenString,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		},
	})
}

// GetMe returns the current authenticated user
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"created_at": user.CreatedAt,
	})
}

// ForgotPassword issues a single-use reset token and mails a reset
// link. It always answers ok so the endpoint cannot be used to probe
// which emails have accounts.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var input models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", input.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	token, err := h.resetTokens.Create(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to create reset token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start password reset"})
		return
	}

	link := fmt.Sprintf("%s/%s", h.resetURLBase, token)
	body := fmt.Sprintf(`<a href="%s">reset password</a>`, link)
	if err := h.mailer.Send(user.Email, "Reset your password", body); err != nil {
		h.logger.Error("failed to send reset mail", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send reset email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ChangePassword consumes a reset token, stores the new password hash
// and signs the user in.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var input models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.NewPassword == "" {
		c.JSON(http.StatusBadRequest, fieldErrors("new_password", "New password is required"))
		return
	}
	if len(input.NewPassword) <= 5 {
		c.JSON(http.StatusBadRequest, fieldErrors("new_password", "Password length must be greater than 5"))
		return
	}
	if input.PasswordConfirmation == "" {
		c.JSON(http.StatusBadRequest, fieldErrors("password_confirmation", "Password confirmation is required"))
		return
	}
	if input.NewPassword != input.PasswordConfirmation {
		c.JSON(http.StatusBadRequest, fieldErrors("password_confirmation", "Password confirmation must match exactly your new password"))
		return
	}

	userID, err := h.resetTokens.Consume(c.Request.Context(), input.Token)
	if errors.Is(err, tokens.ErrTokenNotFound) {
		c.JSON(http.StatusBadRequest, fieldErrors("token", "Token expired"))
		return
	}
	if err != nil {
		h.logger.Error("failed to consume reset token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change password"})
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusBadRequest, fieldErrors("token", "User no longer exists"))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user.Password = string(hashedPassword)
	if err := h.db.Save(&user).Error; err != nil {
		h.logger.Error("failed to update password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change password"})
		return
	}

	tokenString, err := h.signToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": tokenString,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		},
	})
}

func (h *AuthHandler) signToken(user models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
		"exp":      time.Now().Add(72 * time.Hour).Unix(),
	})
	return token.SignedString(h.jwtSecret)
}

func validateRegister(input models.RegisterRequest) (field, message string, ok bool) {
	if input.Username == "" {
		return "username", "Username is required", false
	}
	if len(input.Username) <= 5 {
		return "username", "Username length must be greater than 5", false
	}

	if input.Email == "" {
		return "email", "Email is required", false
	}
	if !emailPattern.MatchString(input.Email) {
		return "email", "Invalid email address", false
	}

	if input.Password == "" {
		return "password", "Password is required", false
	}
	if len(input.Password) <= 5 {
		return "password", "Password length must be greater than 5", false
	}

	return "", "", true
}
