// internal/recipient/ref.go
package recipient

import (
	"fmt"
	"strconv"
	"strings"

	"school-notify/internal/models"
)

// Kind tags the interpretation of a recipient reference. Exactly one
// interpretation is attempted per call; the resolver never re-derives it
// from string contents.
type Kind string

const (
	// KindID is a bare numeric id with no role qualification.
	KindID Kind = "id"
	// KindRoleQualifiedID came in as "<Role>_<id>" and carries the role
	// extracted from the prefix.
	KindRoleQualifiedID Kind = "role_qualified_id"
	// KindBusinessCode is a human-facing identifier: an admission number or
	// an employee code.
	KindBusinessCode Kind = "business_code"
)

// Ref is the parsed form of a recipient reference.
type Ref struct {
	Kind    Kind
	Role    string // pinned role or a broad sentinel; never empty after Parse
	Raw     string // identifier text after composite decomposition
	ID      int64  // numeric value, valid only when Numeric
	Numeric bool
}

// compositePrefixes are the roles accepted in "<Role>_<id>" references.
var compositePrefixes = []string{models.RoleTeacher, models.RoleStaff, models.RoleStudent}

// Parse turns a loosely-typed recipient reference (number, "<Role>_<id>"
// string, or business-code string) plus an optional role hint into a tagged
// Ref.
//
// When no hint is supplied and the reference is purely numeric, the role
// defaults to Student. This is a documented historical assumption carried
// over from the callers: bare ids are most commonly students. A numeric ref
// that actually belongs to another role can therefore silently fail to
// resolve; do not change the default without checking every call site.
func Parse(raw interface{}, roleHint string) Ref {
	text := coerce(raw)
	kind := KindID

	// Composite decomposition only applies when the caller gave no hint.
	if roleHint == "" {
		if idx := strings.Index(text, "_"); idx > 0 {
			prefix := text[:idx]
			for _, p := range compositePrefixes {
				if strings.EqualFold(prefix, p) {
					roleHint = p
					text = text[idx+1:]
					kind = KindRoleQualifiedID
					break
				}
			}
		}
	}

	if roleHint == "" {
		roleHint = models.RoleStudent
	}

	ref := Ref{
		Kind: kind,
		Role: roleHint,
		Raw:  text,
	}

	if id, err := strconv.ParseInt(text, 10, 64); err == nil {
		ref.ID = id
		ref.Numeric = true
	} else {
		ref.Kind = KindBusinessCode
	}

	return ref
}

// String renders the ref for logs.
func (r Ref) String() string {
	return fmt.Sprintf("%s:%s(%s)", r.Kind, r.Raw, r.Role)
}

func coerce(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		// JSON numbers decode as float64
		return strconv.FormatInt(int64(v), 10)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
