package api

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var ethAddressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// RequestValidator adapts go-playground/validator to echo's Validator
// interface and registers the eth_addr_hex tag used by request structs.
type RequestValidator struct {
	Validator *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	_ = v.RegisterValidation("eth_addr_hex", func(fl validator.FieldLevel) bool {
		return ethAddressRe.MatchString(fl.Field().String())
	})
	return &RequestValidator{Validator: v}
}

func (v *RequestValidator) Validate(i interface{}) error {
	return v.Validator.Struct(i)
}
