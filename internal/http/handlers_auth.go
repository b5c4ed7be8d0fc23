package http

import (
	"errors"
	"net/http"

	"fintrack/internal/core"
)

type sessionResponse struct {
	Message string    `json:"message"`
	User    core.User `json:"user"`
	Token   string    `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in core.RegisterInput
	if !decodeJSON(w, r, &in) {
		return
	}
	sess, err := s.users.Register(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setSessionCookie(w, sess)
	writeJSON(w, http.StatusCreated, sessionResponse{Message: "User registered successfully", User: sess.User, Token: sess.Token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in core.LoginInput
	if !decodeJSON(w, r, &in) {
		return
	}
	sess, err := s.users.Login(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, sessionResponse{Message: "Login successful", User: sess.User, Token: sess.Token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Profile(r.Context(), userID(r.Context()))
	if errors.Is(err, core.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var upd core.ProfileUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	u, err := s.users.UpdateProfile(r.Context(), userID(r.Context()), upd)
	if errors.Is(err, core.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Profile updated successfully", "user": u})
}

// handleLogout only clears the cookie; tokens are stateless.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.clearSessionCookie(w)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}
