// internal/utils/validator.go
package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var (
	reportDomains   = map[string]bool{"overview": true, "keywords": true, "categories": true, "products": true, "auctions": true}
	styleDirectives = map[string]bool{"standard": true, "concise": true, "exec-summary": true, "detailed": true}
	retailerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)
)

func init() {
	validate = validator.New()
	validate.RegisterValidation("report_domain", validateReportDomain)
	validate.RegisterValidation("style_directive", validateStyleDirective)
	validate.RegisterValidation("retailer_id", validateRetailerID)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateReportDomain(fl validator.FieldLevel) bool {
	return reportDomains[fl.Field().String()]
}

func validateStyleDirective(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || styleDirectives[value]
}

func validateRetailerID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if len(id) == 0 || len(id) > 100 {
		return false
	}
	return retailerIDRegex.MatchString(id)
}

func IsStyleDirective(value string) bool {
	return styleDirectives[value]
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must contain at least " + e.Param() + " item(s)"
	case "max":
		return e.Field() + " must be at most " + e.Param() + " characters"
	case "datetime":
		return e.Field() + " must be a date in the form " + e.Param()
	case "report_domain":
		return e.Field() + " must be one of overview, keywords, categories, products, auctions"
	case "style_directive":
		return "Style directive must be standard, concise, exec-summary or detailed"
	case "retailer_id":
		return "Retailer ID must contain only letters, numbers, dashes and underscores"
	default:
		return e.Field() + " is invalid"
	}
}
