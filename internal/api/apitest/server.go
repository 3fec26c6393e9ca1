// Package apitest provides an in-process fake of the intake backend for tests.
package apitest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// SigningKey signs the tokens the fake issues
var SigningKey = []byte("apitest-secret")

// Request is a captured inbound request
type Request struct {
	Path    string
	Header  http.Header
	Body    []byte
	Decoded map[string]interface{}
}

type account struct {
	name     string
	password string
}

// Server mimics /login, /register and /submit_forms.
// Handlers behave like the production backend: 201 on register, {"token"} on
// login, 401 for bad credentials or a missing bearer token.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	accounts    map[string]account
	tokens      map[string]string // token -> email
	requests    []Request
	submissions []map[string]string
	forced      map[string]int
	fixedToken  string
}

// NewServer starts a fake backend. Call Close when done.
func NewServer() *Server {
	s := &Server{
		accounts: make(map[string]account),
		tokens:   make(map[string]string),
		forced:   make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(s.capture)
	r.Post("/login", s.login)
	r.Post("/register", s.register)
	r.Group(func(r chi.Router) {
		r.Use(s.bearerAuth)
		r.Post("/submit_forms", s.submitForms)
	})

	s.Server = httptest.NewServer(r)
	return s
}

// AddAccount registers an account directly
func (s *Server) AddAccount(name, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[email] = account{name: name, password: password}
}

// IssueToken makes token valid for submissions as email
func (s *Server) IssueToken(token, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = email
}

// FixToken makes the next logins return token instead of a signed JWT
func (s *Server) FixToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixedToken = token
}

// ForceStatus makes every request to path answer with status
func (s *Server) ForceStatus(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced[path] = status
}

// Requests returns every captured request in arrival order
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request to path
func (s *Server) LastRequest(path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return Request{}, false
}

// Submissions returns every accepted intake payload
func (s *Server) Submissions() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]string, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// HasAccount reports whether email is registered
func (s *Server) HasAccount(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accounts[email]
	return ok
}

func (s *Server) capture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		var decoded map[string]interface{}
		_ = json.Unmarshal(body, &decoded)

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Path:    r.URL.Path,
			Header:  r.Header.Clone(),
			Body:    body,
			Decoded: decoded,
		})
		status, forced := s.forced[r.URL.Path]
		s.mu.Unlock()

		if forced {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Missing Authorization Header"})
			return
		}

		s.mu.Lock()
		_, valid := s.tokens[token]
		s.mu.Unlock()
		if !valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON"})
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[req.Email]
	fixed := s.fixedToken
	s.mu.Unlock()

	if !ok || acct.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		return
	}

	token := fixed
	if token == "" {
		var err error
		token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": req.Email,
			"iat": time.Now().Unix(),
		}).SignedString(SigningKey)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "token signing failed"})
			return
		}
	}

	s.IssueToken(token, req.Email)
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON"})
		return
	}

	s.mu.Lock()
	_, exists := s.accounts[req.Email]
	if !exists {
		s.accounts[req.Email] = account{name: req.Name, password: req.Password}
	}
	s.mu.Unlock()

	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Email already registered"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully!"})
}

func (s *Server) submitForms(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Forms map[string]string `json:"forms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON"})
		return
	}

	s.mu.Lock()
	s.submissions = append(s.submissions, req.Forms)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Forms submitted successfully!"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
