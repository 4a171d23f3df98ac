// Package validation checks generated drafts and HTTP request bodies.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/content-pipeline/internal/ai"
	"github.com/content-pipeline/internal/config"
)

// MaxSlugLength bounds generated and manual slugs
const MaxSlugLength = 100

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Result is the outcome of validating one draft
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validator wraps the go-playground validator with the draft rules
type Validator struct {
	validate *validator.Validate
	rules    []fieldRule
}

type fieldRule struct {
	field string
	value func(d *ai.Draft) interface{}
	tag   string
}

// New creates a validator using the configured thresholds. Zero values fall back to the defaults.
func New(limits config.ValidationConfig) *Validator {
	limits = withDefaults(limits)

	validate := validator.New()
	registerCustomValidators(validate)

	// Use JSON field names for validation error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validate: validate,
		rules: []fieldRule{
			{"title", func(d *ai.Draft) interface{} { return d.Title }, fmt.Sprintf("required,max=%d", limits.TitleMax)},
			{"slug", func(d *ai.Draft) interface{} { return d.Slug }, "required,slug"},
			{"excerpt", func(d *ai.Draft) interface{} { return d.Excerpt }, fmt.Sprintf("required,max=%d", limits.ExcerptMax)},
			{"content", func(d *ai.Draft) interface{} { return d.Content }, fmt.Sprintf("required,min=%d", limits.ContentMin)},
			{"metaTitle", func(d *ai.Draft) interface{} { return d.MetaTitle }, fmt.Sprintf("omitempty,max=%d", limits.MetaTitleMax)},
			{"metaDescription", func(d *ai.Draft) interface{} { return d.MetaDescription }, fmt.Sprintf("omitempty,max=%d", limits.MetaDescriptionMax)},
			{"keywords", func(d *ai.Draft) interface{} { return d.Keywords }, fmt.Sprintf("required,min=%d,dive,required", limits.KeywordsMin)},
		},
	}
}

func withDefaults(l config.ValidationConfig) config.ValidationConfig {
	if l.TitleMax <= 0 {
		l.TitleMax = 70
	}
	if l.ExcerptMax <= 0 {
		l.ExcerptMax = 300
	}
	if l.ContentMin <= 0 {
		l.ContentMin = 1500
	}
	if l.MetaTitleMax <= 0 {
		l.MetaTitleMax = 70
	}
	if l.MetaDescriptionMax <= 0 {
		l.MetaDescriptionMax = 160
	}
	if l.KeywordsMin <= 0 {
		l.KeywordsMin = 1
	}
	return l
}

// Validate checks every rule and reports all failures in field order
func (v *Validator) Validate(d *ai.Draft) Result {
	if d == nil {
		return Result{Valid: false, Errors: []string{"draft is missing"}}
	}

	result := Result{Valid: true, Errors: []string{}}
	for _, rule := range v.rules {
		err := v.validate.Var(rule.value(d), rule.tag)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			result.Errors = append(result.Errors, message(rule.field, verrs[0]))
		} else {
			result.Errors = append(result.Errors, fmt.Sprintf("%s is invalid", rule.field))
		}
	}
	result.Valid = len(result.Errors) == 0
	return result
}

// Struct validates a tagged request body
func (v *Validator) Struct(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return NewValidationError(verrs)
		}
		return err
	}
	return nil
}

// DraftError lists every rule a stored post broke when it was submitted
type DraftError struct {
	Errors []string `json:"errors"`
}

func (e *DraftError) Error() string {
	return "draft failed validation: " + strings.Join(e.Errors, "; ")
}

// Check runs Validate and returns a *DraftError when any rule fails
func (v *Validator) Check(d *ai.Draft) error {
	res := v.Validate(d)
	if res.Valid {
		return nil
	}
	return &DraftError{Errors: res.Errors}
}

// ValidationError carries per-field messages for a rejected request body
type ValidationError struct {
	Errors map[string]string `json:"errors"`
}

// Error implements the error interface
func (e ValidationError) Error() string {
	messages := make([]string, 0, len(e.Errors))
	for _, msg := range e.Errors {
		messages = append(messages, msg)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, ", "))
}

// NewValidationError creates a ValidationError from validator.ValidationErrors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	out := make(map[string]string, len(errs))
	for _, err := range errs {
		out[err.Field()] = message(err.Field(), err)
	}
	return &ValidationError{Errors: out}
}

func message(field string, err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if err.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s items", field, err.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters long", field, err.Param())
	case "max":
		if err.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s items", field, err.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters long", field, err.Param())
	case "slug":
		return fmt.Sprintf("%s must be lowercase words separated by single hyphens (at most %d characters)", field, MaxSlugLength)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, err.Param())
	case "duration":
		return fmt.Sprintf("%s must be a duration such as 24h", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// ValidSlug reports whether s is usable as a post slug
func ValidSlug(s string) bool {
	return len(s) <= MaxSlugLength && slugPattern.MatchString(s)
}

// registerCustomValidators registers custom validation rules
func registerCustomValidators(validate *validator.Validate) {
	// Slug validation: lowercase words joined by single hyphens
	_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return ValidSlug(fl.Field().String())
	})

	// Duration validation: anything time.ParseDuration accepts, positive
	_ = validate.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		return ValidDuration(fl.Field().String())
	})
}

// ValidDuration reports whether s is a positive Go duration such as "6h"
func ValidDuration(s string) bool {
	d, err := time.ParseDuration(s)
	return err == nil && d > 0
}
