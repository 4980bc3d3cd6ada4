package dto

import "time"

// CustomerRegisterRequest payload for new customers.
type CustomerRegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Validate checks required fields.
func (r CustomerRegisterRequest) Validate() error {
	errs := fieldErrors{}
	errs.require("name", r.Name)
	errs.maxLen("name", r.Name, maxNameLength)
	errs.email("email", r.Email)
	errs.require("password", r.Password)
	return errs.err()
}

// LoginRequest payload for customer and staff login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields.
func (r LoginRequest) Validate() error {
	errs := fieldErrors{}
	errs.require("email", r.Email)
	errs.require("password", r.Password)
	return errs.err()
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Subject   any       `json:"subject,omitempty"`
}

// CustomerResponse is the public view of a customer.
type CustomerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
