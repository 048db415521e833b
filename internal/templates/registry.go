// internal/templates/registry.go
package templates

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "school-notify/internal/common/errors"
	"school-notify/internal/models"
)

// Registry holds the per-category message templates used by the SMS and
// WhatsApp senders. Loaded once at startup and reused for all sends.
type Registry struct {
	Version   string     `json:"version"`
	Templates []Template `json:"templates"`

	byCategory map[string]Template
}

type Template struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

// registrySchema validates the registry file shape before use. A registry
// that fails validation aborts startup; a missing path falls back to the
// built-in defaults instead.
const registrySchema = `{
	"type": "object",
	"required": ["version", "templates"],
	"properties": {
		"version": {"type": "string"},
		"templates": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["category", "title", "body"],
				"properties": {
					"category": {"type": "string", "minLength": 1},
					"title": {"type": "string", "minLength": 1},
					"body": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

// Load reads and validates a template registry from path. An empty path
// returns the built-in defaults.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template registry: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(registrySchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, apperrors.NewTemplateValidationError(err.Error())
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, apperrors.NewTemplateValidationError(strings.Join(details, "; "))
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode template registry: %w", err)
	}
	reg.index()
	return &reg, nil
}

// Defaults returns the built-in template set used when no registry file is
// configured.
func Defaults() *Registry {
	reg := &Registry{
		Version: "builtin",
		Templates: []Template{
			{
				Category: models.CategoryAttendance,
				Title:    "Attendance Alert",
				Body:     "Dear Parent, {{studentName}} was marked {{status}} on {{date}}.",
			},
			{
				Category: models.CategoryFeeReceipt,
				Title:    "Fee Receipt",
				Body:     "Payment of {{amount}} received for {{studentName}}. Receipt no: {{receiptNo}}.",
			},
			{
				Category: models.CategoryExamResult,
				Title:    "Exam Result",
				Body:     "{{studentName}} scored {{marks}} in {{examName}}.",
			},
		},
	}
	reg.index()
	return reg
}

func (r *Registry) index() {
	r.byCategory = make(map[string]Template, len(r.Templates))
	for _, t := range r.Templates {
		r.byCategory[t.Category] = t
	}
}

// Lookup returns the template for a category.
func (r *Registry) Lookup(category string) (Template, error) {
	t, ok := r.byCategory[category]
	if !ok {
		return Template{}, apperrors.NewTemplateNotFoundError(category)
	}
	return t, nil
}

// Render fills a category's body template with data.
func (r *Registry) Render(category string, data map[string]interface{}) (string, error) {
	t, err := r.Lookup(category)
	if err != nil {
		return "", err
	}
	return RenderString(t.Body, data), nil
}

// RenderString replaces {{placeholder}} slots with values from data and
// strips any placeholders that have no value, so a missing key degrades to
// an empty string instead of leaking template syntax to a parent's phone.
func RenderString(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if i, ok := v.(int); ok {
			value = fmt.Sprintf("%d", i)
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	// Remove any remaining placeholders (missing values)
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}
