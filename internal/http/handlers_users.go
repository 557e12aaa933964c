package http

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tally/internal/core"
	applog "tally/internal/log"
	"tally/internal/storage"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

type loginResponse struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// handleRegister creates a new account. Username uniqueness is enforced
// by the storage layer in a single insert, so concurrent registrations
// of the same name cannot both succeed.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Username = sanitizeInput(req.Username)
	if err := core.ValidateCredentials(req.Username, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Password hashing failed", applog.FieldError, err)
		s.writeServerError(w, err)
		return
	}

	user, err := s.users.CreateUser(r.Context(), req.Username, string(hash))
	if err != nil {
		if errors.Is(err, storage.ErrUsernameTaken) {
			writeError(w, http.StatusBadRequest, "Username already exists")
			return
		}
		s.logger.ErrorContext(r.Context(), "User creation failed",
			applog.FieldUsername, req.Username, applog.FieldError, err)
		s.writeServerError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "User registered",
		applog.NewFields().WithUser(user.ID, user.Username).ToSlice()...)
	writeJSON(w, http.StatusCreated, userResponse{UserID: user.ID, Username: user.Username})
}

// handleLogin verifies credentials and issues a session token. The same
// response is returned whether the user is unknown or the password is
// wrong, so usernames cannot be probed.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Username = sanitizeInput(req.Username)
	if err := core.ValidateCredentials(req.Username, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.users.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		s.logger.ErrorContext(r.Context(), "User lookup failed",
			applog.FieldUsername, req.Username, applog.FieldError, err)
		s.writeServerError(w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := generateSessionToken()
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Token generation failed", applog.FieldError, err)
		s.writeServerError(w, err)
		return
	}

	now := time.Now().UTC()
	session := core.Session{
		Token:     token,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.CreateSession(r.Context(), session); err != nil {
		s.logger.ErrorContext(r.Context(), "Session creation failed",
			applog.FieldUserID, user.ID, applog.FieldError, err)
		s.writeServerError(w, err)
		return
	}

	s.logger.InfoContext(r.Context(), "User logged in",
		applog.NewFields().WithUser(user.ID, user.Username).ToSlice()...)
	writeJSON(w, http.StatusOK, loginResponse{UserID: user.ID, Username: user.Username, Token: token})
}

// handleLogout invalidates the presented session token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if err := s.sessions.DeleteSession(r.Context(), token); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.ErrorContext(r.Context(), "Session deletion failed", applog.FieldError, err)
		s.writeServerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
