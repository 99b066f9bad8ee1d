package handlers

import (
	"errors"
	"fmt"
	"strings"

	"DBAdminDO/internal/validation"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the binding tags used by request structs to gin's validator
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}

	rules := map[string]validator.Func{
		"tablename": func(fl validator.FieldLevel) bool {
			return validation.IsValidTableName(fl.Field().String())
		},
		"fieldpath": func(fl validator.FieldLevel) bool {
			return validation.IsValidFieldPath(fl.Field().String())
		},
		"orderdir": func(fl validator.FieldLevel) bool {
			dir := strings.ToLower(fl.Field().String())
			return dir == "asc" || dir == "desc"
		},
		"dbusername": func(fl validator.FieldLevel) bool {
			return validation.IsValidUsername(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// bindingMessage turns validator errors into a readable sentence
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request: " + err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "tablename":
			msgs = append(msgs, "invalid table name: "+fmt.Sprint(fe.Value()))
		case "orderdir":
			msgs = append(msgs, "order_dir must be asc or desc")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
