package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yourusername/account-api/internal/pkg/errors"
	"github.com/yourusername/account-api/internal/service"
)

// FirebaseAuthHandler exposes the /api/v2 surface where the account
// lifecycle is delegated to Firebase.
type FirebaseAuthHandler struct {
	firebaseAuth *service.FirebaseAuthService
}

func NewFirebaseAuthHandler(firebaseAuth *service.FirebaseAuthService) *FirebaseAuthHandler {
	return &FirebaseAuthHandler{firebaseAuth: firebaseAuth}
}

type FirebaseCredentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type FirebaseGoogleRequest struct {
	IDToken    string `json:"id_token" binding:"required"`
	RequestURI string `json:"request_uri" binding:"omitempty"`
}

type FirebaseTokenRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// Register handles POST /api/v2/register.
func (h *FirebaseAuthHandler) Register(c *gin.Context) {
	var req FirebaseCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	session, err := h.firebaseAuth.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.handleFirebaseError(c, err)
		return
	}

	log.Printf("[FirebaseAuthHandler] registered firebase user localId=%s", session.LocalID)
	c.JSON(http.StatusCreated, session)
}

// Login handles POST /api/v2/login.
func (h *FirebaseAuthHandler) Login(c *gin.Context) {
	var req FirebaseCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	session, err := h.firebaseAuth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.handleFirebaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// GoogleSignIn handles POST /api/v2/google.
func (h *FirebaseAuthHandler) GoogleSignIn(c *gin.Context) {
	var req FirebaseGoogleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	session, err := h.firebaseAuth.SignInWithGoogle(c.Request.Context(), req.IDToken, req.RequestURI)
	if err != nil {
		h.handleFirebaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// ResetPassword handles POST /api/v2/reset-password. Firebase mails the
// reset link itself.
func (h *FirebaseAuthHandler) ResetPassword(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	if err := h.firebaseAuth.SendPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.handleFirebaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset email sent"})
}

// DeleteAccount handles DELETE /api/v2/delete-account.
func (h *FirebaseAuthHandler) DeleteAccount(c *gin.Context) {
	var req FirebaseTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	if err := h.firebaseAuth.DeleteAccount(c.Request.Context(), req.IDToken); err != nil {
		h.handleFirebaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

// Logout handles POST /api/v2/logout. Firebase sessions are client-held;
// there is nothing to revoke server-side.
func (h *FirebaseAuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

func (h *FirebaseAuthHandler) handleFirebaseError(c *gin.Context, err error) {
	log.Printf("[FirebaseAuthHandler] Error: %v", err)

	switch {
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered", "error_type": "email_taken"})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "error_type": "unauthorized"})
	case errors.Is(err, apperrors.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many attempts, try again later", "error_type": "rate_limited"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation error", "error_type": "validation_error", "details": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
	}
}
