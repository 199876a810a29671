package registry

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"cmdwh/pkg/errors"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var definitionValidator *validator.Validate

func v() *validator.Validate {
	if definitionValidator == nil {
		definitionValidator = validator.New(validator.WithRequiredStructEnabled())
		_ = definitionValidator.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
			return identifierRe.MatchString(fl.Field().String())
		})
	}
	return definitionValidator
}

// Validate rejects definitions that would produce ambiguous or unquotable
// catalog objects. It does not look at the files themselves.
func Validate(defs []TableDefinition) error {
	if len(defs) == 0 {
		return errors.New(errors.ErrCodeRegistryInvalid, "Registry has no table definitions")
	}

	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		if err := v().Struct(d); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				return errors.New(errors.ErrCodeRegistryInvalid,
					fmt.Sprintf("Definition %d (%q): field %s failed %q", i, d.Name, verrs[0].Namespace(), verrs[0].Tag())).
					WithContext("definition", d.Name)
			}
			return errors.Wrap(err, errors.ErrCodeRegistryInvalid, "Invalid table definition")
		}
		if seen[d.Name] {
			return errors.New(errors.ErrCodeRegistryInvalid, fmt.Sprintf("Duplicate table definition %q", d.Name)).
				WithContext("definition", d.Name)
		}
		seen[d.Name] = true

		columns := make(map[string]bool, len(d.Columns))
		for _, c := range d.Columns {
			if c.Name == SampleIDColumn {
				return errors.New(errors.ErrCodeRegistryInvalid,
					fmt.Sprintf("Definition %q: column name %q is reserved", d.Name, SampleIDColumn)).
					WithContext("definition", d.Name)
			}
			if columns[c.Name] {
				return errors.New(errors.ErrCodeRegistryInvalid,
					fmt.Sprintf("Definition %q: duplicate column %q", d.Name, c.Name)).
					WithContext("definition", d.Name)
			}
			columns[c.Name] = true
		}
	}
	return nil
}
