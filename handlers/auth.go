package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/camden-git/fieldsurvey/models"
	"github.com/camden-git/fieldsurvey/repository"
	"github.com/golang-jwt/jwt/v5"
)

const (
	jwtExpirationHours = 24
	jwtIssuer          = "fieldsurvey"
	minPasswordLength  = 8
)

// TokenIssuer signs and verifies HS256 access tokens whose subject is the
// user id.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{key: []byte(secret), ttl: jwtExpirationHours * time.Hour, now: time.Now}
}

// Issue returns a signed token for the user and its expiry.
func (t *TokenIssuer) Issue(userID uint) (string, time.Time, error) {
	now := t.now()
	expirationTime := now.Add(t.ttl)
	claims := &jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ExpiresAt: jwt.NewNumericDate(expirationTime),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    jwtIssuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expirationTime, nil
}

// Parse verifies a token and returns its user id.
func (t *TokenIssuer) Parse(tokenString string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.key, nil
	}, jwt.WithIssuer(jwtIssuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		return 0, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID in token subject %q", claims.Subject)
	}
	return uint(userID), nil
}

type AuthHandler struct {
	UserRepo repository.UserRepository
	Tokens   *TokenIssuer
}

type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	User      *models.User `json:"user"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request payload")
		return
	}

	user, err := h.UserRepo.GetByUsername(strings.TrimSpace(payload.Username))
	if err != nil || !user.CheckPassword(payload.Password) {
		WriteAPIError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return
	}

	token, expiresAt, err := h.Tokens.Issue(user.ID)
	if err != nil {
		log.Printf("handlers: ERROR issuing token for user %d: %v", user.ID, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user, ExpiresAt: expiresAt})
}

type RegisterPayload struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Register creates an account and logs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request payload: "+err.Error())
		return
	}
	username := strings.TrimSpace(payload.Username)
	if username == "" || payload.Password == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Username and password are required")
		return
	}
	if len(payload.Password) < minPasswordLength {
		WriteAPIError(w, http.StatusBadRequest, "weak_password", fmt.Sprintf("Password must have at least %d characters", minPasswordLength))
		return
	}
	if _, err := h.UserRepo.GetByUsername(username); err == nil {
		WriteAPIError(w, http.StatusConflict, "username_taken", "Username already exists")
		return
	}

	newUser := &models.User{Username: username, DisplayName: strings.TrimSpace(payload.DisplayName)}
	if err := newUser.SetPassword(payload.Password); err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to hash password")
		return
	}
	if err := h.UserRepo.Create(newUser); err != nil {
		log.Printf("handlers: ERROR creating user %s: %v", username, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to create user")
		return
	}

	token, expiresAt, err := h.Tokens.Issue(newUser.ID)
	if err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusCreated, LoginResponse{Token: token, User: newUser, ExpiresAt: expiresAt})
}

// CurrentUser returns the authenticated user.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}
