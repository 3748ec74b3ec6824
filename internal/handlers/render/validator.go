package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const authCodeLength = 6

func configureValidator(validate *validator.Validate) {
	_ = validate.RegisterValidation("authcode", validateAuthCode)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

// Return on 'TagName' json tag instead of struct name
// Look at documentation of 'RegisterTagNameFunc' for more details
func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// One-time code is exactly 6 ascii digits, leading zeros are significant
func validateAuthCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	if len(code) != authCodeLength {
		return false
	}

	// It's ok to work with string as bytes here
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
