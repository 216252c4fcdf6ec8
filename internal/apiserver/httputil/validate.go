package httputil

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"library-admin/internal/shared/apperr"
)

var validate = newValidator()

// newValidator 字段名取 json 标签，错误信息与请求体字段一致
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate 按 validate 标签校验结构体，返回第一个字段错误
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return apperr.Internal("failed to validate input", err)
	}
	return apperr.Validation("%s", fieldMessage(fields[0]))
}

// ValidateEmail 校验裸邮箱地址，规则与 validate:"email" 标签相同
func ValidateEmail(v string) error {
	if err := validate.Var(v, "email"); err != nil {
		return errors.New("enter a valid email address")
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "email":
		return "enter a valid email address"
	case "oneof":
		return fmt.Sprintf("%q is not a valid %s", fmt.Sprint(fe.Value()), fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	}
	return fe.Field() + " is invalid"
}
