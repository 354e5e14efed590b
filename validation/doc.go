// Package validation provides input validation utilities for feedgate.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection. Struct tag validation is
// used for configuration structs and admin request bodies; the fluent
// Validator is used where checks depend on runtime state.
//
// # Struct Tag Validation
//
//	type PatchRequest struct {
//	    Priority *int `json:"priority" validate:"omitempty,gte=0"`
//	    Weight   *int `json:"weight" validate:"omitempty,gte=0"`
//	}
//	err := validation.Validate(req)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("symbol", symbol).Positive("price", price)
//	if appErr := v.Validate(); appErr != nil {
//	    return appErr
//	}
package validation
