// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/jeranaias/ragdesk/internal/api"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// fieldLabels maps struct fields to the labels shown on the form.
var fieldLabels = map[string]string{
	"Username": "username",
	"Password": "password",
	"Email":    "email",
	"FullName": "full name",
}

// validateForm checks form and returns the first failure as a
// *api.ValidationError.
func validateForm(form any) error {
	err := formValidator().Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return api.NewValidationError("", err.Error())
	}

	fe := fieldErrs[0]
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = strings.ToLower(fe.Field())
	}
	return &api.ValidationError{Field: label, Reason: describe(label, fe)}
}

func describe(label string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("please enter your %s", label)
	case "email":
		return "please enter a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}
