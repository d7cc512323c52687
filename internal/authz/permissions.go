package authz

// Permission identifies a single capability in the platform catalog.
type Permission string

// User permissions.
const (
	PermViewUsers       Permission = "view_users_40110"
	PermViewSchoolUsers Permission = "view_my_school_users_40111"
	PermViewClassUsers  Permission = "view_my_class_users_40112"
	PermCreateUsers     Permission = "create_users_40220"
	PermEditUsers       Permission = "edit_users_40330"
	PermDeleteUsers     Permission = "delete_users_40440"
)

// Organization permissions.
const (
	PermEditOrganization   Permission = "edit_this_organization_10330"
	PermDeleteOrganization Permission = "delete_organization_10440"
	PermSendInvitation     Permission = "send_invitation_40882"
	PermRemoveMembership   Permission = "deactivate_user_40883"
)

// School permissions.
const (
	PermViewSchool   Permission = "view_school_20110"
	PermViewMySchool Permission = "view_my_school_20119"
	PermCreateSchool Permission = "create_school_20220"
	PermEditSchool   Permission = "edit_school_20330"
	PermDeleteSchool Permission = "delete_school_20440"
)

// Class permissions.
const (
	PermViewClasses       Permission = "view_classes_20114"
	PermViewSchoolClasses Permission = "view_school_classes_20117"
	PermCreateClass       Permission = "create_class_20221"
	PermEditClass         Permission = "edit_class_20334"
	PermDeleteClass       Permission = "delete_class_20444"
	PermAttendAsTeacher   Permission = "attend_live_class_as_a_teacher"
	PermAttendAsStudent   Permission = "attend_live_class_as_a_student"
)

// Role permissions.
const (
	PermViewRoles  Permission = "view_roles_30110"
	PermCreateRole Permission = "create_role_with_permissions_30222"
	PermEditRole   Permission = "edit_role_and_permissions_30332"
	PermDeleteRole Permission = "delete_role_30440"
)

// Academic taxonomy permissions.
const (
	PermViewPrograms      Permission = "view_program_20111"
	PermViewAgeRanges     Permission = "view_age_range_20112"
	PermViewGrades        Permission = "view_grades_20113"
	PermViewSubjects      Permission = "view_subjects_20115"
	PermCreatePrograms    Permission = "create_program_20221"
	PermCreateAgeRanges   Permission = "create_age_range_20222"
	PermCreateGrades      Permission = "create_grade_20223"
	PermCreateSubjects    Permission = "create_subjects_20227"
	PermEditPrograms      Permission = "edit_program_20331"
	PermEditAgeRanges     Permission = "edit_age_range_20332"
	PermEditGrades        Permission = "edit_grade_20333"
	PermEditSubjects      Permission = "edit_subjects_20337"
	PermDeletePrograms    Permission = "delete_program_20441"
	PermDeleteAgeRanges   Permission = "delete_age_range_20442"
	PermDeleteGrades      Permission = "delete_grade_20443"
	PermDeleteSubjects    Permission = "delete_subjects_20447"
	PermShareContent      Permission = "share_content_282"
)

var catalog = buildCatalog()

func buildCatalog() map[Permission]struct{} {
	perms := []Permission{
		PermViewUsers, PermViewSchoolUsers, PermViewClassUsers,
		PermCreateUsers, PermEditUsers, PermDeleteUsers,
		PermEditOrganization, PermDeleteOrganization,
		PermSendInvitation, PermRemoveMembership,
		PermViewSchool, PermViewMySchool, PermCreateSchool, PermEditSchool, PermDeleteSchool,
		PermViewClasses, PermViewSchoolClasses, PermCreateClass, PermEditClass, PermDeleteClass,
		PermAttendAsTeacher, PermAttendAsStudent,
		PermViewRoles, PermCreateRole, PermEditRole, PermDeleteRole,
		PermViewPrograms, PermViewAgeRanges, PermViewGrades, PermViewSubjects,
		PermCreatePrograms, PermCreateAgeRanges, PermCreateGrades, PermCreateSubjects,
		PermEditPrograms, PermEditAgeRanges, PermEditGrades, PermEditSubjects,
		PermDeletePrograms, PermDeleteAgeRanges, PermDeleteGrades, PermDeleteSubjects,
		PermShareContent,
	}
	m := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		m[p] = struct{}{}
	}
	return m
}

// IsDefined reports whether p belongs to the permission catalog.
func IsDefined(p Permission) bool {
	_, ok := catalog[p]
	return ok
}

// AllPermissions returns every permission in the catalog.
func AllPermissions() []Permission {
	out := make([]Permission, 0, len(catalog))
	for p := range catalog {
		out = append(out, p)
	}
	return out
}
