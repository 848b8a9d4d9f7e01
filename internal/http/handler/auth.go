package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"notesy/internal/auth"
)

var validate = validator.New()

type AuthHandler struct {
	Users auth.Users
	JWT   *auth.JWT
	Errors
}

type registerReq struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResp struct {
	Message string     `json:"message"`
	Token   string     `json:"token"`
	User    *auth.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.write(w, r, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = auth.NormalizeEmail(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		h.write(w, r, http.StatusBadRequest, "Username, email, and password are required", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		h.write(w, r, http.StatusBadRequest, "Invalid username, email or password", err)
		return
	}
	// validator counts runes; bcrypt's limit is in bytes
	if len(req.Password) > auth.MaxPasswordBytes {
		h.write(w, r, http.StatusBadRequest, "Invalid username, email or password", nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.write(w, r, http.StatusInternalServerError, "Internal server error during registration", err)
		return
	}

	u := &auth.User{Username: req.Username, Email: req.Email, PasswordHash: hash}
	if err := h.Users.Create(r.Context(), u); err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			h.write(w, r, http.StatusBadRequest, "User with this email or username already exists", nil)
			return
		}
		h.write(w, r, http.StatusInternalServerError, "Internal server error during registration", err)
		return
	}

	token, err := h.JWT.Sign(u.ID)
	if err != nil {
		h.write(w, r, http.StatusInternalServerError, "Internal server error during registration", err)
		return
	}

	writeJSON(w, http.StatusCreated, authResp{Message: "User registered successfully", Token: token, User: u})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.write(w, r, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	req.Email = auth.NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		h.write(w, r, http.StatusBadRequest, "Email and password are required", nil)
		return
	}

	u, err := h.Users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			h.write(w, r, http.StatusUnauthorized, "Invalid email or password", nil)
			return
		}
		h.write(w, r, http.StatusInternalServerError, "Internal server error during login", err)
		return
	}
	if !auth.ComparePassword(u.PasswordHash, req.Password) {
		h.write(w, r, http.StatusUnauthorized, "Invalid email or password", nil)
		return
	}

	token, err := h.JWT.Sign(u.ID)
	if err != nil {
		h.write(w, r, http.StatusInternalServerError, "Internal server error during login", err)
		return
	}

	writeJSON(w, http.StatusOK, authResp{Message: "Login successful", Token: token, User: u})
}

// Me returns the account behind the bearer token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	u, err := h.Users.FindByID(r.Context(), uid)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			h.write(w, r, http.StatusUnauthorized, "Token is not valid", nil)
			return
		}
		h.write(w, r, http.StatusInternalServerError, "Server error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*auth.User{"user": u})
}
