package handler

import "github.com/go-playground/validator/v10"

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
    v *validator.Validate
}

func NewValidator() *Validator {
    return &Validator{v: validator.New()}
}

// Validate runs the struct's validate tags.
func (cv *Validator) Validate(i interface{}) error {
    return cv.v.Struct(i)
}
