package handler

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yourusername/account-api/internal/pkg/errors"
	"github.com/yourusername/account-api/internal/service"
)

// maxProfileImageBytes caps the accepted multipart image payload.
const maxProfileImageBytes = 8 << 20

// AccountHandler exposes the account HTTP surface.
type AccountHandler struct {
	accountService *service.AccountService
}

func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// --- Request/response DTOs ---

// RegisterRequest is the multipart registration form.
type RegisterRequest struct {
	Email     string `form:"email" binding:"required,email"`
	Username  string `form:"username" binding:"required,min=3,max=50"`
	Password  string `form:"password" binding:"required,min=6,max=72"`
	FirstName string `form:"first_name" binding:"omitempty,max=100"`
	Surname   string `form:"surname" binding:"omitempty,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyTextCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=72"`
}

// UpdateAccountRequest is the multipart profile update form. Absent fields
// stay unchanged.
type UpdateAccountRequest struct {
	Username  *string `form:"username" binding:"omitempty,min=3,max=50"`
	FirstName *string `form:"first_name" binding:"omitempty,max=100"`
	Surname   *string `form:"surname" binding:"omitempty,max=100"`
}

// --- Handlers ---

// Register handles POST /api/register.
func (h *AccountHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	image, contentType, err := readProfileImage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "invalid_image"})
		return
	}

	user, err := h.accountService.Register(c.Request.Context(), service.RegisterInput{
		Email:            req.Email,
		Username:         req.Username,
		Password:         req.Password,
		FirstName:        req.FirstName,
		Surname:          req.Surname,
		Image:            image,
		ImageContentType: contentType,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	log.Printf("[AccountHandler] registered user ID=%d (%s)", user.ID, user.Email)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful, check your email for the verification link",
		"user":    user,
	})
}

// VerifyEmail handles GET /api/verify?token=.
func (h *AccountHandler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required", "error_type": "validation_error"})
		return
	}

	if err := h.accountService.VerifyEmail(c.Request.Context(), token); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully"})
}

// Login handles POST /api/login.
func (h *AccountHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	result, err := h.accountService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":      result.User,
		"token":     result.Token,
		"tokenType": result.TokenType,
	})
}

// SendTextVerificationCode handles POST /api/text-verify.
func (h *AccountHandler) SendTextVerificationCode(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	if err := h.accountService.SendTextVerificationCode(c.Request.Context(), req.Email); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent"})
}

// VerifyTextCode handles POST /api/verify-text-code.
func (h *AccountHandler) VerifyTextCode(c *gin.Context) {
	var req VerifyTextCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	if err := h.accountService.VerifyTextCode(c.Request.Context(), req.Email, req.Code); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Verification successful"})
}

// RequestPasswordReset handles POST /api/request-password-reset.
func (h *AccountHandler) RequestPasswordReset(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	if err := h.accountService.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset email sent"})
}

// ResetPassword handles POST /api/reset-password.
func (h *AccountHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	if err := h.accountService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// UpdateAccount handles PUT /api/update-account (authenticated).
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	var req UpdateAccountRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	image, contentType, err := readProfileImage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "invalid_image"})
		return
	}

	user, err := h.accountService.UpdateAccount(c.Request.Context(), userID, service.UpdateAccountInput{
		Username:         req.Username,
		FirstName:        req.FirstName,
		Surname:          req.Surname,
		Image:            image,
		ImageContentType: contentType,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account updated successfully", "user": user})
}

// DeleteAccount handles DELETE /api/delete-account (authenticated).
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	if err := h.accountService.DeleteAccount(c.Request.Context(), userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	log.Printf("[AccountHandler] deleted user ID=%d", userID)
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

// --- Helpers ---

// readProfileImage pulls the optional profileImage part out of a multipart
// form. A missing part is not an error.
func readProfileImage(c *gin.Context) ([]byte, string, error) {
	fileHeader, err := c.FormFile("profileImage")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("invalid profile image upload")
	}
	if fileHeader.Size > maxProfileImageBytes {
		return nil, "", fmt.Errorf("profile image exceeds the %d byte limit", maxProfileImageBytes)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read profile image")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxProfileImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read profile image")
	}
	if len(data) > maxProfileImageBytes {
		return nil, "", fmt.Errorf("profile image exceeds the %d byte limit", maxProfileImageBytes)
	}

	return data, imageContentType(fileHeader, data), nil
}

func imageContentType(fileHeader *multipart.FileHeader, data []byte) string {
	if ct := fileHeader.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// handleServiceError maps service errors to HTTP status codes and stable
// error_type strings.
func (h *AccountHandler) handleServiceError(c *gin.Context, err error) {
	var verificationErr *service.VerificationError
	log.Printf("[AccountHandler] Error: %v", err)

	if errors.As(err, &verificationErr) {
		switch verificationErr.Kind {
		case service.VerificationKindLocked:
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               "Too many failed attempts, verification is temporarily locked",
				"error_type":          "verification_locked",
				"retry_after_minutes": verificationErr.RetryAfterMinutes,
			})
		case service.VerificationKindInvalid:
			c.JSON(http.StatusBadRequest, gin.H{
				"error":        "Invalid verification code",
				"error_type":   "invalid_verification_code",
				"attemptsLeft": verificationErr.AttemptsLeft,
			})
		case service.VerificationKindExpired:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Verification code expired", "error_type": "verification_expired"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "No active verification code", "error_type": "no_active_verification_code"})
		}
		return
	}

	switch {
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered", "error_type": "email_taken"})
	case errors.Is(err, service.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username already taken", "error_type": "username_taken"})
	case errors.Is(err, service.ErrUnsafeContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content rejected by moderation", "error_type": "unsafe_content"})
	case errors.Is(err, service.ErrResetTokenInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reset token", "error_type": "reset_token_invalid"})
	case errors.Is(err, service.ErrResetTokenExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Reset token expired", "error_type": "reset_token_expired"})
	case errors.Is(err, apperrors.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests", "error_type": "rate_limited"})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password", "error_type": "unauthorized"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied", "error_type": "forbidden"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found", "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Data conflict", "error_type": "conflict"})
	case errors.Is(err, apperrors.ErrExpiredToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token expired", "error_type": "token_expired"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation error", "error_type": "validation_error", "details": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
	}
}
