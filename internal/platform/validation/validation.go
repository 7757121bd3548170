// Package validation registers the custom binding tags used by request DTOs.
package validation

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"equipborrow-backend/internal/platform/ids"
)

var (
	mu    sync.Mutex
	enums = map[string]map[string]struct{}{}
)

func engine() (*validator.Validate, bool) {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	return v, ok
}

// Setup registers the ulid tag. Safe to call more than once.
func Setup() {
	mu.Lock()
	defer mu.Unlock()
	v, ok := engine()
	if !ok {
		return
	}
	_ = v.RegisterValidation("ulid", func(fl validator.FieldLevel) bool {
		return ids.IsULID(fl.Field().String())
	})
}

// RegisterEnum adds a tag that accepts exactly the given values. Pointer and
// slice fields are handled through validator's own dive/omitempty rules.
func RegisterEnum(tag string, values ...string) {
	mu.Lock()
	defer mu.Unlock()
	set := make(map[string]struct{}, len(values))
	for _, s := range values {
		set[s] = struct{}{}
	}
	enums[tag] = set

	v, ok := engine()
	if !ok {
		return
	}
	_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		mu.Lock()
		allowed := enums[tag]
		mu.Unlock()
		_, ok := allowed[fl.Field().String()]
		return ok
	})
}

// OneOf reports whether s is a value registered under tag.
func OneOf(tag, s string) bool {
	mu.Lock()
	defer mu.Unlock()
	_, ok := enums[tag][s]
	return ok
}

// Message flattens binding errors into one line fit for an API error.
func Message(err error) string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return "invalid request body"
	}
	parts := make([]string, 0, len(ves))
	for _, fe := range ves {
		parts = append(parts, describe(fe))
	}
	return strings.Join(parts, "; ")
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "ulid":
		return fmt.Sprintf("%s must be a ULID", field)
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a UUID", field)
	}
	mu.Lock()
	allowed, isEnum := enums[fe.Tag()]
	mu.Unlock()
	if isEnum {
		vals := make([]string, 0, len(allowed))
		for k := range allowed {
			vals = append(vals, k)
		}
		slices.Sort(vals)
		return fmt.Sprintf("%s must be one of %s", field, strings.Join(vals, ", "))
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
