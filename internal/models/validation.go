package models

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	cssIdentPattern = regexp.MustCompile(`^-?[A-Za-z_][A-Za-z0-9_-]*$`)
	segmentPattern  = regexp.MustCompile(`^[A-Za-z0-9_$-]+(\[[^\[\]]+\])?$`)
)

// schemaValidator returns the shared validator used for theme documents
func schemaValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("schema"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("css_ident", func(fl validator.FieldLevel) bool {
			return cssIdentPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("css_value", func(fl validator.FieldLevel) bool {
			return !strings.ContainsAny(fl.Field().String(), ";{}")
		})

		_ = v.RegisterValidation("asset_id", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return strings.TrimSpace(s) == s && !strings.ContainsAny(s, "\n\r\t")
		})

		_ = v.RegisterValidation("store_path", func(fl validator.FieldLevel) bool {
			return IsStorePath(fl.Field().String())
		})

		validateInst = v
	})
	return validateInst
}

// IsStorePath reports whether path has the form store.segment[.segment...]
// where a segment may carry one bracketed key.
func IsStorePath(path string) bool {
	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts {
		if !segmentPattern.MatchString(p) {
			return false
		}
	}
	return true
}

func validateDocument(doc *ThemeDocument) SchemaErrors {
	var errs SchemaErrors
	v := schemaValidator()

	owners := make(map[string]string)
	for _, key := range doc.Structure.Keys() {
		def, ok := doc.components[key]
		if !ok {
			continue
		}
		errs = append(errs, convertValidationError("structure."+key, v.Struct(def))...)
		if def.ID == "" {
			continue
		}
		if owner, dup := owners[def.ID]; dup {
			errs = append(errs, &SchemaError{
				Path:   "structure." + key + ".id",
				Reason: fmt.Sprintf("id %q already used by %s", def.ID, owner),
			})
			continue
		}
		owners[def.ID] = key
	}

	for _, name := range doc.LayoutNames() {
		errs = append(errs, convertValidationError("presets.layouts."+name, v.Struct(doc.layouts[name]))...)
	}
	return errs
}

func convertValidationError(prefix string, err error) SchemaErrors {
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return SchemaErrors{{Path: prefix, Reason: err.Error()}}
	}
	out := make(SchemaErrors, 0, len(ves))
	for _, fe := range ves {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, &SchemaError{
			Path:   prefix + "." + field,
			Reason: fmt.Sprintf("value %q failed validation for tag '%s'", fmt.Sprint(fe.Value()), fe.Tag()),
		})
	}
	return out
}
