package pgstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lyceum-platform/lyceum/internal/authz"
)

// taxonomyKinds maps taxonomy entity kinds to their share-table tag.
var taxonomyKinds = map[authz.EntityKind]string{
	authz.KindProgram:     "program",
	authz.KindSubject:     "subject",
	authz.KindGrade:       "grade",
	authz.KindAgeRange:    "age_range",
	authz.KindCategory:    "category",
	authz.KindSubcategory: "subcategory",
}

// Translate renders a scope predicate as a Postgres WHERE fragment for the
// given entity kind, using alias as the primary table alias. Arguments are
// appended to args and referenced positionally starting after its current
// length, so the fragment composes with a surrounding dynamic query.
func Translate(kind authz.EntityKind, p authz.Predicate, alias string, args []any) (string, []any, error) {
	t := translator{kind: kind, alias: alias, args: args}
	sql, err := t.render(p)
	if err != nil {
		return "", nil, err
	}
	return sql, t.args, nil
}

type translator struct {
	kind  authz.EntityKind
	alias string
	args  []any
}

func (t *translator) bind(v any) string {
	t.args = append(t.args, v)
	return "$" + strconv.Itoa(len(t.args))
}

func (t *translator) render(p authz.Predicate) (string, error) {
	switch v := p.(type) {
	case authz.Always:
		return "TRUE", nil
	case authz.Never:
		return "FALSE", nil
	case authz.BelongsToOrgIn:
		if t.kind == authz.KindOrganization {
			return t.alias + ".id = ANY(" + t.bind(v.OrgIDs) + ")", nil
		}
		return t.alias + ".organization_id = ANY(" + t.bind(v.OrgIDs) + ")", nil
	case authz.ReachableViaSchoolIn:
		switch t.kind {
		case authz.KindSchool:
			return t.alias + ".id = ANY(" + t.bind(v.SchoolIDs) + ")", nil
		case authz.KindClass:
			return "EXISTS (SELECT 1 FROM school_classes sc WHERE sc.class_id = " + t.alias +
				".id AND sc.school_id = ANY(" + t.bind(v.SchoolIDs) + "))", nil
		}
		return "", fmt.Errorf("pgstore: ReachableViaSchoolIn not defined for kind %q", t.kind)
	case authz.MemberOfOrgIn:
		return "EXISTS (SELECT 1 FROM organization_memberships m WHERE m.user_id = " + t.alias +
			".id AND m.status = 'active' AND m.organization_id = ANY(" + t.bind(v.OrgIDs) + "))", nil
	case authz.MemberOfSchoolIn:
		return "EXISTS (SELECT 1 FROM school_memberships m WHERE m.user_id = " + t.alias +
			".id AND m.status = 'active' AND m.school_id = ANY(" + t.bind(v.SchoolIDs) + "))", nil
	case authz.MemberOfClassTaughtBy:
		viewer := t.bind(v.UserID)
		return "EXISTS (SELECT 1 FROM class_teachers t0 WHERE t0.user_id = " + viewer +
			" AND (EXISTS (SELECT 1 FROM class_teachers t1 WHERE t1.class_id = t0.class_id AND t1.user_id = " + t.alias + ".id)" +
			" OR EXISTS (SELECT 1 FROM class_students s1 WHERE s1.class_id = t0.class_id AND s1.user_id = " + t.alias + ".id)))", nil
	case authz.MemberOfClassStudiedBy:
		viewer := t.bind(v.UserID)
		return "EXISTS (SELECT 1 FROM class_students st0 WHERE st0.user_id = " + viewer +
			" AND (EXISTS (SELECT 1 FROM class_teachers t1 WHERE t1.class_id = st0.class_id AND t1.user_id = " + t.alias + ".id)" +
			" OR EXISTS (SELECT 1 FROM class_students s1 WHERE s1.class_id = st0.class_id AND s1.user_id = " + t.alias + ".id)))", nil
	case authz.OwnRecord:
		return t.alias + ".id = " + t.bind(v.UserID), nil
	case authz.SharesEmailWith:
		return t.alias + ".email = (SELECT email FROM users WHERE id = " + t.bind(v.UserID) + ")", nil
	case authz.SystemFlagged:
		return t.alias + ".system = TRUE", nil
	case authz.SharedWithOrgIn:
		tag, ok := taxonomyKinds[t.kind]
		if !ok {
			return "", fmt.Errorf("pgstore: SharedWithOrgIn not defined for kind %q", t.kind)
		}
		return "EXISTS (SELECT 1 FROM taxonomy_shares ts WHERE ts.kind = " + t.bind(tag) +
			" AND ts.entity_id = " + t.alias + ".id AND ts.organization_id = ANY(" + t.bind(v.OrgIDs) + "))", nil
	case authz.Or:
		return t.renderComposite(v.Terms, " OR ")
	case authz.And:
		return t.renderComposite(v.Terms, " AND ")
	}
	return "", fmt.Errorf("pgstore: unknown predicate %T", p)
}

func (t *translator) renderComposite(terms []authz.Predicate, op string) (string, error) {
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		sql, err := t.render(term)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return "(" + strings.Join(parts, op) + ")", nil
}
