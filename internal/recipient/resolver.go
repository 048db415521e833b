// internal/recipient/resolver.go
package recipient

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "school-notify/internal/common/errors"
	"school-notify/internal/common/logger"
	"school-notify/internal/models"
)

// Outcome classifies a resolution so callers can tell silent data-quality
// collisions apart from genuine absence.
type Outcome string

const (
	// OutcomeUnique means exactly one account matched.
	OutcomeUnique Outcome = "unique"
	// OutcomeAmbiguous means the profile join produced more than one
	// candidate and the first was taken.
	OutcomeAmbiguous Outcome = "ambiguous"
	// OutcomeUnresolved means no account matched.
	OutcomeUnresolved Outcome = "unresolved"
)

// Resolution is the result of resolving a Ref.
type Resolution struct {
	Outcome Outcome
	Account models.Account
	// Path records which probe matched: "account" (direct id lookup) or
	// "profile" (role-table reconciliation join).
	Path string
}

func (r Resolution) Resolved() bool {
	return r.Outcome != OutcomeUnresolved
}

// Resolver maps a parsed recipient reference to a canonical account.
//
// Ordering, first match wins:
//  1. direct account probe by numeric id, gated by the role hint;
//  2. role-profile probe joining the pinned role's table to accounts by
//     case-insensitive email equality or the synthesized
//     "<code>@<role>.school.com" convention.
//
// Once a role is pinned there is no fallback chaining across roles.
type Resolver struct {
	db     *sql.DB
	logger logger.Logger
}

func NewResolver(db *sql.DB, log logger.Logger) *Resolver {
	return &Resolver{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "resolver"}),
	}
}

const accountColumns = `a.id, a.role, a.email, a.fcm_token, a.school_id`

// Resolve runs the two-probe lookup. An unresolved reference is not an
// error; the returned error is non-nil only for unexpected database
// failures, which dispatch also treats as "no delivery possible".
func (r *Resolver) Resolve(ctx context.Context, ref Ref) (Resolution, error) {
	if ref.Numeric {
		res, err := r.probeAccount(ctx, ref)
		if err != nil {
			return Resolution{Outcome: OutcomeUnresolved}, err
		}
		if res.Resolved() {
			return res, nil
		}
	}

	res, err := r.probeProfile(ctx, ref)
	if err != nil {
		return Resolution{Outcome: OutcomeUnresolved}, err
	}
	if !res.Resolved() {
		r.logger.Warn("recipient unresolved", map[string]interface{}{
			"ref":  ref.String(),
			"role": ref.Role,
		})
	}
	return res, nil
}

// probeAccount looks up an account row directly by id. The match is accepted
// only when the role hint allows it; this path takes priority over the
// profile join.
func (r *Resolver) probeAccount(ctx context.Context, ref Ref) (Resolution, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts a WHERE a.id = $1`, ref.ID)

	var acc models.Account
	err := row.Scan(&acc.ID, &acc.Role, &acc.Email, &acc.FCMToken, &acc.SchoolID)
	switch {
	case err == sql.ErrNoRows:
		return Resolution{Outcome: OutcomeUnresolved}, nil
	case err != nil:
		return Resolution{Outcome: OutcomeUnresolved}, apperrors.NewQueryFailedError(err)
	}

	if !models.RoleAccepts(ref.Role, acc.Role) {
		// Account exists under a different role than the hint; the direct
		// probe does not resolve and the profile probe takes over.
		return Resolution{Outcome: OutcomeUnresolved}, nil
	}

	return Resolution{Outcome: OutcomeUnique, Account: acc, Path: "account"}, nil
}

// profileTable describes the role-specific lookup table for the probe.
type profileTable struct {
	table       string
	codeColumn  string
	emailDomain string
}

// profileFor picks the profile table for a pinned role. Broad sentinels fall
// back to the Student pathway, consistent with the bare-numeric default.
// Admin has no profile table and resolves only via the direct probe.
func profileFor(role string) (profileTable, bool) {
	switch {
	case strings.EqualFold(role, models.RoleTeacher):
		return profileTable{"teachers", "employee_id", "teacher"}, true
	case strings.EqualFold(role, models.RoleStaff) || models.IsStaffVariant(role):
		return profileTable{"staff", "employee_id", "staff"}, true
	case strings.EqualFold(role, models.RoleStudent) || models.IsBroadHint(role):
		return profileTable{"students", "admission_no", "student"}, true
	default:
		return profileTable{}, false
	}
}

// probeProfile reconciles the role profile table with accounts by email.
// There is no foreign key between the two; the join is best-effort and may
// produce multiple candidates, which is reported as OutcomeAmbiguous with
// the first row taken.
func (r *Resolver) probeProfile(ctx context.Context, ref Ref) (Resolution, error) {
	pt, ok := profileFor(ref.Role)
	if !ok {
		return Resolution{Outcome: OutcomeUnresolved}, nil
	}

	query := fmt.Sprintf(
		`SELECT `+accountColumns+`
		 FROM %s p
		 JOIN accounts a ON LOWER(a.email) = LOWER(p.email)
		   OR LOWER(a.email) = LOWER(p.%s || '@%s.school.com')
		 WHERE p.id::text = $1 OR p.%s = $1
		 ORDER BY a.id
		 LIMIT 2`,
		pt.table, pt.codeColumn, pt.emailDomain, pt.codeColumn,
	)

	rows, err := r.db.QueryContext(ctx, query, ref.Raw)
	if err != nil {
		return Resolution{Outcome: OutcomeUnresolved}, apperrors.NewQueryFailedError(err)
	}
	defer rows.Close()

	var matches []models.Account
	for rows.Next() {
		var acc models.Account
		if err := rows.Scan(&acc.ID, &acc.Role, &acc.Email, &acc.FCMToken, &acc.SchoolID); err != nil {
			return Resolution{Outcome: OutcomeUnresolved}, apperrors.NewQueryFailedError(err)
		}
		matches = append(matches, acc)
	}
	if err := rows.Err(); err != nil {
		return Resolution{Outcome: OutcomeUnresolved}, apperrors.NewQueryFailedError(err)
	}

	switch len(matches) {
	case 0:
		return Resolution{Outcome: OutcomeUnresolved}, nil
	case 1:
		return Resolution{Outcome: OutcomeUnique, Account: matches[0], Path: "profile"}, nil
	default:
		r.logger.Warn("multiple accounts matched profile, taking first", map[string]interface{}{
			"ref":   ref.String(),
			"table": pt.table,
			"taken": matches[0].ID,
		})
		return Resolution{Outcome: OutcomeAmbiguous, Account: matches[0], Path: "profile"}, nil
	}
}
