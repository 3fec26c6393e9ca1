package intake

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Field describes one input of the intake form
type Field struct {
	Name        string `yaml:"name" validate:"required"`
	Label       string `yaml:"label" validate:"required"`
	Placeholder string `yaml:"placeholder"`
	Required    bool   `yaml:"required"`
	Multiline   bool   `yaml:"multiline"`
	MaxLength   int    `yaml:"max_length" validate:"gte=0"`
}

// Schema is the ordered list of intake form fields
type Schema struct {
	Title  string  `yaml:"title"`
	Fields []Field `yaml:"fields" validate:"required,min=1,dive"`
}

// DefaultSchema is the single free-text patient details field
func DefaultSchema() Schema {
	return Schema{
		Title: "Intake Form",
		Fields: []Field{
			{
				Name:        "details",
				Label:       "Patient details",
				Placeholder: "Enter patient details...",
				Required:    true,
				Multiline:   true,
			},
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadSchema reads a YAML schema file. An empty path yields DefaultSchema.
func LoadSchema(path string) (Schema, error) {
	if path == "" {
		return DefaultSchema(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("read intake schema: %w", err)
	}
	schema, err := ParseSchema(data)
	if err != nil {
		return Schema{}, fmt.Errorf("%s: %w", path, err)
	}
	return schema, nil
}

// ParseSchema decodes and validates a YAML schema
func ParseSchema(data []byte) (Schema, error) {
	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return Schema{}, fmt.Errorf("parse intake schema: %w", err)
	}
	if err := validate.Struct(schema); err != nil {
		return Schema{}, fmt.Errorf("invalid intake schema: %w", err)
	}

	seen := make(map[string]bool, len(schema.Fields))
	for _, f := range schema.Fields {
		if strings.ContainsAny(f.Name, " \t\n") {
			return Schema{}, fmt.Errorf("invalid intake schema: field name %q contains whitespace", f.Name)
		}
		if seen[f.Name] {
			return Schema{}, fmt.Errorf("invalid intake schema: duplicate field %q", f.Name)
		}
		seen[f.Name] = true
	}

	if schema.Title == "" {
		schema.Title = DefaultSchema().Title
	}
	return schema, nil
}

// Field returns the field called name
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// MissingFieldsError lists required fields left blank
type MissingFieldsError struct {
	Labels []string
}

func (e *MissingFieldsError) Error() string {
	if len(e.Labels) == 1 {
		return e.Labels[0] + " is required"
	}
	return strings.Join(e.Labels, ", ") + " are required"
}

// TooLongError reports a value over its field's MaxLength
type TooLongError struct {
	Label string
	Max   int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("%s must be at most %d characters", e.Label, e.Max)
}

// Validate checks p against the schema. Whitespace-only values count as blank.
func (s Schema) Validate(p Payload) error {
	var missing []string
	for _, f := range s.Fields {
		value := p[f.Name]
		if f.Required && strings.TrimSpace(value) == "" {
			missing = append(missing, f.Label)
			continue
		}
		if f.MaxLength > 0 && len([]rune(value)) > f.MaxLength {
			return &TooLongError{Label: f.Label, Max: f.MaxLength}
		}
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Labels: missing}
	}
	return nil
}
