package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Credentials is the body of POST /login
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration is the body of POST /register
type Registration struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the success body of POST /login
type LoginResponse struct {
	Token string `json:"token"`
}

// SubmitFormsRequest is the body of POST /submit_forms
type SubmitFormsRequest struct {
	Forms map[string]string `json:"forms"`
}

// MessageResponse is the {"message": ...} body the backend uses for notices and errors
type MessageResponse struct {
	Message string `json:"message"`
	Msg     string `json:"msg,omitempty"` // flask-jwt-extended uses "msg"
}

// Text returns whichever message field is set
func (m MessageResponse) Text() string {
	if m.Message != "" {
		return m.Message
	}
	return m.Msg
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the credentials before anything is sent
func (c Credentials) Validate() error {
	return validateStruct(c)
}

// Validate checks the registration before anything is sent
func (r Registration) Validate() error {
	return validateStruct(r)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			problems = append(problems, field+" is required")
		case "email":
			problems = append(problems, field+" must be a valid email address")
		default:
			problems = append(problems, field+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, ", "))
}
