package lecture

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"jamati/internal/model"
)

// ValidationError lists the draft fields that are missing or malformed.
// Nothing is stored when Add returns it.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid lecture: missing or invalid " + strings.Join(e.Fields, ", ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, _, err := model.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("day", func(fl validator.FieldLevel) bool {
		return model.Day(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("lecturetype", func(fl validator.FieldLevel) bool {
		return model.LectureType(fl.Field().String()).Valid()
	})
	return v
}

// normalize trims surrounding whitespace so that "   " counts as missing.
func normalize(d model.Draft) model.Draft {
	d.Name = strings.TrimSpace(d.Name)
	d.Professor = strings.TrimSpace(d.Professor)
	d.StartTime = strings.TrimSpace(d.StartTime)
	d.Location = strings.TrimSpace(d.Location)
	return d
}

// Validate checks d and returns a *ValidationError naming every bad field.
func Validate(d model.Draft) error {
	err := validate.Struct(normalize(d))
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{Fields: fields}
}
