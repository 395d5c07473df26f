package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenIssuerName = "chartsync"

// Claims are the JWT claims of a session token.
type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func (t *tokenIssuer) issue(u *User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuerName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *tokenIssuer) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(tokenIssuerName))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// authCookie carries the session token for browser clients.
const authCookie = "auth_token"

// sessionToken returns the token from the auth cookie, or else from the
// Authorization bearer header.
func sessionToken(c *gin.Context) (string, bool) {
	if raw, err := c.Cookie(authCookie); err == nil && raw != "" {
		return raw, true
	}
	raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	return raw, ok && raw != ""
}

// authRequired accepts only the user's current session token.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := sessionToken(c)
		if !ok {
			abortError(c, http.StatusUnauthorized, "Authentication required")
			return
		}

		claims, err := s.tokens.parse(raw)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		var user User
		if err := s.db.First(&user, claims.UserID).Error; err != nil {
			abortError(c, http.StatusUnauthorized, "User not found")
			return
		}
		if user.CurrentToken != raw {
			abortError(c, http.StatusUnauthorized, "Session expired. Please login again.")
			return
		}

		c.Set(ctxUserID, user.ID)
		c.Next()
	}
}

type signupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func toUserResponse(u *User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name}
}

func (s *Server) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing User
	err := s.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		abortError(c, http.StatusConflict, "Email already registered")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.internalError(c, "lookup user", err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.internalError(c, "hash password", err)
		return
	}

	user := User{Email: email, Password: string(hash), Name: req.Name}
	if err := s.db.Create(&user).Error; err != nil {
		s.internalError(c, "create user", err)
		return
	}

	token, err := s.startSession(&user)
	if err != nil {
		s.internalError(c, "start session", err)
		return
	}
	c.JSON(http.StatusCreated, authResponse{Token: token, User: toUserResponse(&user)})
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err.Error())
		return
	}

	var user User
	err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortError(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		s.internalError(c, "lookup user", err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		abortError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.startSession(&user)
	if err != nil {
		s.internalError(c, "start session", err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Token: token, User: toUserResponse(&user)})
}

func (s *Server) me(c *gin.Context) {
	var user User
	if err := s.db.First(&user, c.GetUint(ctxUserID)).Error; err != nil {
		abortError(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, toUserResponse(&user))
}

type updateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" binding:"omitempty,email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

// updateMe changes the name and/or email of the current user. Empty fields
// are left as they are.
func (s *Server) updateMe(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err.Error())
		return
	}

	var user User
	if err := s.db.First(&user, c.GetUint(ctxUserID)).Error; err != nil {
		abortError(c, http.StatusNotFound, "User not found")
		return
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		var other User
		err := s.db.Where("email = ?", email).First(&other).Error
		if err == nil {
			abortError(c, http.StatusConflict, "Email already registered")
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.internalError(c, "lookup user", err)
			return
		}
		updates["email"] = email
	}
	if len(updates) == 0 {
		abortError(c, http.StatusBadRequest, "Nothing to update")
		return
	}

	if err := s.db.Model(&user).Updates(updates).Error; err != nil {
		s.internalError(c, "update user", err)
		return
	}
	if v, ok := updates["name"]; ok {
		user.Name = v.(string)
	}
	if v, ok := updates["email"]; ok {
		user.Email = v.(string)
	}
	c.JSON(http.StatusOK, toUserResponse(&user))
}

// changePassword replaces the password after checking the current one. The
// session token stays valid.
func (s *Server) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err.Error())
		return
	}

	var user User
	if err := s.db.First(&user, c.GetUint(ctxUserID)).Error; err != nil {
		abortError(c, http.StatusNotFound, "User not found")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)) != nil {
		abortError(c, http.StatusBadRequest, "Current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		s.internalError(c, "hash password", err)
		return
	}
	if err := s.db.Model(&user).Update("password", string(hash)).Error; err != nil {
		s.internalError(c, "update password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// startSession issues a token and makes it the user's only valid one.
func (s *Server) startSession(u *User) (string, error) {
	token, err := s.tokens.issue(u)
	if err != nil {
		return "", err
	}
	if err := s.db.Model(u).Update("current_token", token).Error; err != nil {
		return "", err
	}
	return token, nil
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.log.Error(op, zap.String("id", c.GetString(ctxRequestID)), zap.Error(err))
	abortError(c, http.StatusInternalServerError, "Failed to "+op)
}
