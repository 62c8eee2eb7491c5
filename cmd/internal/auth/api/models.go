package authapi

import "time"

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type demoAccountRequest struct {
	Name           string `json:"name" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email,max=254"`
	Password       string `json:"password" validate:"required"`
	Role           string `json:"role" validate:"required,role"`
	Location       string `json:"location" validate:"max=200"`
	Specialization string `json:"specialization" validate:"omitempty,specialization"`
}

type profileResponse struct {
	Bio      string `json:"bio"`
	Location string `json:"location"`
}

type userResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Role           string          `json:"role"`
	Specialization *string         `json:"specialization"`
	Profile        profileResponse `json:"profile"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type otpRequest struct {
	Email          string `json:"email" validate:"required,email,max=254"`
	Role           string `json:"role" validate:"required,role"`
	Specialization string `json:"specialization" validate:"omitempty,specialization"`
	CaptchaToken   string `json:"captchaToken"`
}

type signupCompleteRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	OTP      string `json:"otp" validate:"required,len=6,numeric"`
}

type forgotPasswordRequest struct {
	Email        string `json:"email" validate:"required,email,max=254"`
	CaptchaToken string `json:"captchaToken"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type signupResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
	Message string       `json:"message"`
}
