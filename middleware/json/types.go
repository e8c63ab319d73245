package json

type M map[string]any

// Error is rendered as {"error": "..."}.
type Error string

// FieldError is rendered as a validation error listing the failing fields.
type FieldError struct {
	Field string
	Error string
}

func genFieldsField(errors []FieldError) []M {
	var fields []M
	for _, err := range errors {
		field := M{}
		field[err.Field] = err.Error
		fields = append(fields, field)
	}
	return fields
}

func envelope(data any) any {
	switch v := data.(type) {
	case []FieldError:
		return M{
			"error":  "Validation error",
			"fields": genFieldsField(v),
		}
	case FieldError:
		return M{
			"error":  "Validation error",
			"fields": genFieldsField([]FieldError{v}),
		}
	case Error:
		return M{"error": string(v)}
	case string:
		return M{"message": v}
	}
	return data
}
