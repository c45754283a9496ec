// Package validator provides struct tag validation with detailed, field-addressed
// error reporting.
//
// # Basic Usage
//
//	type CreateUser struct {
//		Name  string `validate:"required;min:2;max:50"`
//		Email string `validate:"required;email"`
//		Role  string `validate:"in:user,admin"`
//		Age   int    `validate:"min:18"`
//	}
//
//	if err := validator.ValidateStruct(cmd); err != nil {
//		for _, v := range validator.ExtractValidationErrors(err) {
//			fmt.Println(v.Field, v.Message)
//		}
//	}
//
// Rules are separated by semicolons; parameters follow a colon and are comma separated.
// ValidateStruct accepts a struct value or a pointer to one. Nested structs without a
// tag are validated recursively and reported with a dotted path ("Address.City").
//
// # Built-in Rules
//
// required, min, max, len, email, alphanum, numeric, in, not_in, prefix, positive,
// nonzero. Additional rules can be added with RegisterValidator.
//
// # Programmatic Rules
//
// Rule constructors such as Required, MinLenString and ValidEmail can be combined with
// Apply in hand-written Validate methods:
//
//	func (c CreateUser) Validate() error {
//		return validator.Apply(
//			validator.Required("name", c.Name),
//			validator.ValidEmail("email", c.Email),
//		)
//	}
package validator
