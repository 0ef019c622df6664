package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"attendanceconsole/internal/apiclient"
	"attendanceconsole/internal/camera"
)

// Registrar creates users on the attendance API.
type Registrar interface {
	Register(ctx context.Context, req apiclient.RegisterRequest) (*apiclient.RegisterResult, error)
}

// RegistrationForm is the user information entered next to the camera.
type RegistrationForm struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=student teacher staff admin"`
}

// DefaultRegistrationForm is the blank form the page starts from.
func DefaultRegistrationForm() RegistrationForm {
	return RegistrationForm{Role: apiclient.RoleStudent}
}

// RegistrationResult is shown after a successful registration.
type RegistrationResult struct {
	UserID apiclient.ID `json:"user_id"`
	Name   string       `json:"name"`
}

// Registration is the enrollment variant: one captured face plus the form.
type Registration struct {
	api      Registrar
	form     RegistrationForm
	validate *validator.Validate
}

// NewRegistration returns a registration variant with a blank form.
func NewRegistration(api Registrar) *Registration {
	return &Registration{api: api, form: DefaultRegistrationForm(), validate: validator.New()}
}

func (r *Registration) Kind() Kind { return KindRegistration }

func (r *Registration) Form() any { return r.form }

// SetForm replaces the form. Fields are trimmed; an empty role means student.
func (r *Registration) SetForm(f RegistrationForm) {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Role = strings.ToLower(strings.TrimSpace(f.Role))
	if f.Role == "" {
		f.Role = apiclient.RoleStudent
	}
	r.form = f
}

func (r *Registration) Validate(img *camera.CapturedImage) error {
	if img == nil {
		return invalid(msgCaptureFirst)
	}
	if r.form.Name == "" || r.form.Email == "" {
		return invalid("Name and email are required")
	}
	if err := r.validate.Struct(r.form); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			switch ve[0].Field() {
			case "Email":
				return invalid("Please enter a valid email address")
			case "Role":
				return invalid("Role must be one of " + strings.Join(apiclient.Roles, ", "))
			}
		}
		return invalid("Please check the registration form")
	}
	return nil
}

func (r *Registration) Prepare(img camera.CapturedImage) func(context.Context) (Outcome, error) {
	req := apiclient.RegisterRequest{
		Name:  r.form.Name,
		Email: r.form.Email,
		Role:  r.form.Role,
		Image: img.DataURI,
	}
	return func(ctx context.Context) (Outcome, error) {
		res, err := r.api.Register(ctx, req)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Level:        LevelSuccess,
			Text:         fmt.Sprintf("User registered successfully with ID: %s", res.UserID),
			Result:       RegistrationResult{UserID: res.UserID, Name: req.Name},
			DiscardImage: true,
			ResetForm:    true,
		}, nil
	}
}

func (r *Registration) Reset() { r.form = DefaultRegistrationForm() }

func (r *Registration) FailureText() string { return "Failed to register user" }
