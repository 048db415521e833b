// internal/templates/registry_test.go
package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "school-notify/internal/common/errors"
	"school-notify/internal/models"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidRegistry(t *testing.T) {
	path := writeRegistry(t, `{
		"version": "1",
		"templates": [
			{"category": "attendance", "title": "Attendance", "body": "{{studentName}} was {{status}}."}
		]
	}`)

	reg, err := Load(path)
	require.NoError(t, err)

	tmpl, err := reg.Lookup("attendance")
	require.NoError(t, err)
	assert.Equal(t, "Attendance", tmpl.Title)
}

func TestLoad_SchemaViolation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing version", content: `{"templates": [{"category": "a", "title": "t", "body": "b"}]}`},
		{name: "empty templates", content: `{"version": "1", "templates": []}`},
		{name: "template missing body", content: `{"version": "1", "templates": [{"category": "a", "title": "t"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeRegistry(t, tt.content))
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeTemplateValidationFailed, apperrors.CodeOf(err))
		})
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)

	for _, category := range []string{models.CategoryAttendance, models.CategoryFeeReceipt, models.CategoryExamResult} {
		_, err := reg.Lookup(category)
		assert.NoError(t, err, category)
	}
}

func TestRegistry_Lookup_UnknownCategory(t *testing.T) {
	_, err := Defaults().Lookup("transport")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTemplateNotFound, apperrors.CodeOf(err))
}

func TestRegistry_Render(t *testing.T) {
	body, err := Defaults().Render(models.CategoryAttendance, map[string]interface{}{
		"studentName": "Ravi",
		"status":      "Absent",
		"date":        "2026-08-31",
	})

	require.NoError(t, err)
	assert.Equal(t, "Dear Parent, Ravi was marked Absent on 2026-08-31.", body)
}

func TestRenderString_MissingPlaceholdersStripped(t *testing.T) {
	out := RenderString("Hi {{name}}, fee of {{amount}} due.", map[string]interface{}{"name": "Ravi"})
	assert.Equal(t, "Hi Ravi, fee of  due.", out)
}

func TestRenderString_NonStringValues(t *testing.T) {
	out := RenderString("{{count}} books due, fine {{fine}}", map[string]interface{}{
		"count": 3,
		"fine":  12.5,
	})
	assert.Equal(t, "3 books due, fine 12.5", out)
}
