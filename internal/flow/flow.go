// Package flow runs the login, registration and intake submissions.
//
// Each operation makes a single request, converts any failure into a user
// notice and never retries. Only a successful login touches the session.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/clive/intake-tui/internal/api"
	"github.com/clive/intake-tui/internal/intake"
)

// ErrNotAuthenticated is returned when an intake is submitted without a token
var ErrNotAuthenticated = errors.New("not signed in")

// Backend is the subset of the API client the flows need
type Backend interface {
	Login(ctx context.Context, creds api.Credentials) (string, error)
	Register(ctx context.Context, reg api.Registration) error
	SubmitForms(ctx context.Context, token string, forms map[string]string) error
}

// TokenStore is the session as seen by the flows
type TokenStore interface {
	Token() (string, bool)
	SetToken(ctx context.Context, token string) error
}

// Level is the severity of a notice
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

// Notice is a message shown to the user after a submission
type Notice struct {
	Level Level
	Text  string
}

// Result is the outcome of one submission
type Result struct {
	Err            error
	Notice         Notice
	SessionChanged bool // a login stored a new token
}

// OK reports whether the submission succeeded
func (r Result) OK() bool { return r.Err == nil }

// Flows glues the backend client to the session
type Flows struct {
	backend Backend
	session TokenStore
	logger  *slog.Logger
}

// New creates the submission flows
func New(backend Backend, session TokenStore, logger *slog.Logger) *Flows {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flows{backend: backend, session: session, logger: logger}
}

// Login submits credentials and stores the returned token
func (f *Flows) Login(ctx context.Context, creds api.Credentials) Result {
	token, err := f.backend.Login(ctx, creds)
	if err != nil {
		f.logger.Warn("login failed", "error", err, "status", api.StatusCode(err))
		return failure("Login failed", err)
	}

	if err := f.session.SetToken(ctx, token); err != nil {
		// Signed in for this run; the next start will ask again
		f.logger.Warn("login token not persisted", "error", err)
		return Result{
			Notice:         Notice{Level: LevelInfo, Text: "Logged in, but the session could not be saved"},
			SessionChanged: true,
		}
	}

	f.logger.Info("login succeeded")
	return Result{
		Notice:         Notice{Level: LevelSuccess, Text: "Logged in"},
		SessionChanged: true,
	}
}

// Register creates an account; the session is left untouched
func (f *Flows) Register(ctx context.Context, reg api.Registration) Result {
	if err := f.backend.Register(ctx, reg); err != nil {
		f.logger.Warn("registration failed", "error", err, "status", api.StatusCode(err))
		return failure("Registration failed", err)
	}
	f.logger.Info("registration succeeded")
	return Result{Notice: Notice{Level: LevelSuccess, Text: "Registration successful"}}
}

// SubmitIntake validates payload against schema and sends it with the session token.
// The payload is never cleared here; callers keep it for another attempt.
func (f *Flows) SubmitIntake(ctx context.Context, schema intake.Schema, payload intake.Payload) Result {
	if err := schema.Validate(payload); err != nil {
		return failure("Submission failed", fmt.Errorf("%w: %w", api.ErrInvalidInput, err))
	}

	token, ok := f.session.Token()
	if !ok {
		return failure("Submission failed", ErrNotAuthenticated)
	}

	if err := f.backend.SubmitForms(ctx, token, payload.Forms()); err != nil {
		f.logger.Warn("intake submission failed", "error", err, "status", api.StatusCode(err))
		return failure("Submission failed", err)
	}

	f.logger.Info("intake submitted", "fields", len(payload))
	return Result{Notice: Notice{Level: LevelSuccess, Text: "Form submitted successfully"}}
}

func failure(prefix string, err error) Result {
	return Result{
		Err:    err,
		Notice: Notice{Level: LevelError, Text: prefix + ": " + Describe(err)},
	}
}

// Describe turns an error into a short user-facing reason
func Describe(err error) string {
	var missing *intake.MissingFieldsError
	var tooLong *intake.TooLongError
	var se *api.StatusError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &missing):
		return missing.Error()
	case errors.As(err, &tooLong):
		return tooLong.Error()
	case errors.Is(err, api.ErrInvalidInput):
		return trimSentinel(err, api.ErrInvalidInput)
	case errors.Is(err, ErrNotAuthenticated):
		return "please log in first"
	case api.IsNetwork(err):
		return "could not reach the server"
	case errors.Is(err, api.ErrMissingToken):
		return "the server did not return a session token"
	case errors.As(err, &se):
		if se.Message != "" {
			return se.Message
		}
		if se.StatusCode == http.StatusUnauthorized {
			return "invalid email or password"
		}
		return fmt.Sprintf("server responded with HTTP %d", se.StatusCode)
	default:
		return err.Error()
	}
}

// trimSentinel drops the "invalid input: " prefix so only the details remain
func trimSentinel(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok && rest != "" {
		return rest
	}
	return msg
}
