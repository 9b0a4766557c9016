package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"mini-crm/models"
)

type AuthHandler struct {
	repo     models.Repository
	secret   []byte
	tokenTTL time.Duration
}

func NewAuthHandler(repo models.Repository, secret []byte, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{repo: repo, secret: secret, tokenTTL: tokenTTL}
}

type authClaims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	errs := models.FieldErrors{}
	if strings.TrimSpace(req.Username) == "" {
		errs["username"] = "username is required"
	}
	if strings.TrimSpace(req.Email) == "" {
		errs["email"] = "email is required"
	}
	if len(req.Password) < 8 {
		errs["password"] = "password must be at least 8 characters"
	}
	if !errs.OK() {
		validationFailed(c, "Registration failed", errs)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		internalError(c, err)
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := h.repo.CreateUser(user); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			validationFailed(c, "Registration failed", models.FieldErrors{"username": "username is already taken"})
			return
		}
		internalError(c, err)
		return
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"data": gin.H{
			"token": token,
			"user":  userResponse{ID: user.ID, Username: user.Username, Email: user.Email},
		},
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.repo.GetUserByUsername(req.Username)
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully logged in",
		"data": gin.H{
			"token": token,
			"user":  userResponse{ID: user.ID, Username: user.Username, Email: user.Email},
		},
	})
}

func (h *AuthHandler) issueToken(userID uint) (string, error) {
	claims := authClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(h.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.secret)
}
