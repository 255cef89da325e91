package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "eap/pkg/domain"
	dErrors "eap/pkg/domain-errors"
	"eap/pkg/platform/strings"
)

// RoleFields is the loosely typed attribute set supplied when adding a role,
// keyed by the snake_case field names used in forms and JSON.
type RoleFields map[string]any

const dateLayout = "2006-01-02"

// DecodeRole builds the role payload for t from fields. Keys the type does not
// recognize are returned as extras so callers can keep them. Type mismatches
// fail with CodeInvalidInput listing every bad field.
func DecodeRole(t PersonType, fields RoleFields) (Role, map[string]any, error) {
	r := &fieldReader{fields: fields, used: make(map[string]bool, len(fields))}
	var role Role
	switch t {
	case PersonTypePlatformStaff:
		role = &StaffRole{
			OrganizationID:     id.OrganizationID(r.uuid("organization_id")),
			Position:           StaffPosition(r.str("staff_role")),
			Department:         r.str("department"),
			CanManageClients:   r.boolean("can_manage_clients", false),
			CanApproveServices: r.boolean("can_approve_services", false),
			CanViewReports:     r.boolean("can_view_reports", false),
		}
	case PersonTypeClientEmployee:
		e := &EmployeeRole{
			EmployerID:       id.OrganizationID(r.uuid("employer_id")),
			JobRole:          r.str("job_role"),
			EmploymentStatus: EmploymentStatus(r.str("employment_status")),
			Department:       r.str("department"),
			EmployeeNumber:   r.str("employee_number"),
		}
		if start, ok := r.date("employment_start_date"); ok {
			e.StartDate = start
		}
		if end, ok := r.date("employment_end_date"); ok {
			e.EndDate = &end
		}
		if e.EmploymentStatus == "" {
			e.EmploymentStatus = EmploymentActive
		}
		role = e
	case PersonTypeServiceProvider:
		pr := &ProviderRole{
			Category:            ProviderCategory(r.str("provider_category")),
			LicenseNumber:       r.str("license_number"),
			LicenseAuthority:    r.str("license_authority"),
			Specializations:     strings.DedupeAndTrim(r.list("specializations")),
			Certifications:      strings.DedupeAndTrim(r.list("certifications")),
			Languages:           strings.DedupeAndTrim(r.list("languages")),
			HourlyRate:          r.decimal("hourly_rate"),
			Currency:            r.str("currency"),
			AcceptingNewClients: r.boolean("accepting_new_clients", true),
			Bio:                 r.str("bio"),
		}
		if exp, ok := r.date("license_expiry"); ok {
			pr.LicenseExpiry = &exp
		}
		if n, ok := r.integer("max_clients"); ok {
			pr.MaxClients = &n
		}
		pr.CurrentClientCount, _ = r.integer("current_client_count")
		pr.YearsExperience, _ = r.integer("years_experience")
		role = pr
	default:
		return nil, nil, dErrors.New(dErrors.CodeInvalidCombination, string(t)+" cannot be added as a role")
	}
	if len(r.bad) > 0 {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "role fields are malformed").WithFields(r.bad...)
	}
	return role, r.extras(), nil
}

type fieldReader struct {
	fields RoleFields
	used   map[string]bool
	bad    []dErrors.FieldError
}

func (r *fieldReader) take(key string) (any, bool) {
	r.used[key] = true
	v, ok := r.fields[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (r *fieldReader) fail(key, want string) {
	r.bad = append(r.bad, dErrors.FieldError{Field: key, Message: "must be " + want})
}

func (r *fieldReader) str(key string) string {
	v, ok := r.take(key)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String()
	}
	r.fail(key, "a string")
	return ""
}

func (r *fieldReader) boolean(key string, def bool) bool {
	v, ok := r.take(key)
	if !ok {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	r.fail(key, "a boolean")
	return def
}

func (r *fieldReader) integer(key string) (int, bool) {
	v, ok := r.take(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	r.fail(key, "an integer")
	return 0, false
}

func (r *fieldReader) date(key string) (time.Time, bool) {
	v, ok := r.take(key)
	if !ok {
		return time.Time{}, false
	}
	switch d := v.(type) {
	case time.Time:
		return d, !d.IsZero()
	case *time.Time:
		if d != nil {
			return *d, true
		}
		return time.Time{}, false
	case string:
		if d == "" {
			return time.Time{}, false
		}
		if t, err := time.Parse(dateLayout, d); err == nil {
			return t, true
		}
		if t, err := time.Parse(time.RFC3339, d); err == nil {
			return t, true
		}
	}
	r.fail(key, "a date (YYYY-MM-DD)")
	return time.Time{}, false
}

func (r *fieldReader) list(key string) []string {
	v, ok := r.take(key)
	if !ok {
		return nil
	}
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			s, ok := item.(string)
			if !ok {
				r.fail(key, "a list of strings")
				return nil
			}
			out = append(out, s)
		}
		return out
	}
	r.fail(key, "a list of strings")
	return nil
}

func (r *fieldReader) decimal(key string) decimal.Decimal {
	v, ok := r.take(key)
	if !ok {
		return decimal.Zero
	}
	switch d := v.(type) {
	case decimal.Decimal:
		return d
	case float64:
		return decimal.NewFromFloat(d)
	case int:
		return decimal.NewFromInt(int64(d))
	case string:
		if parsed, err := decimal.NewFromString(d); err == nil {
			return parsed
		}
	case json.Number:
		if parsed, err := decimal.NewFromString(d.String()); err == nil {
			return parsed
		}
	}
	r.fail(key, "a decimal amount")
	return decimal.Zero
}

func (r *fieldReader) uuid(key string) uuid.UUID {
	v, ok := r.take(key)
	if !ok {
		return uuid.Nil
	}
	switch u := v.(type) {
	case uuid.UUID:
		return u
	case id.OrganizationID:
		return uuid.UUID(u)
	case string:
		if u == "" {
			return uuid.Nil
		}
		if parsed, err := uuid.Parse(u); err == nil {
			return parsed
		}
	}
	r.fail(key, "a UUID")
	return uuid.Nil
}

func (r *fieldReader) extras() map[string]any {
	var out map[string]any
	for k, v := range r.fields {
		if r.used[k] {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[k] = v
	}
	return out
}
