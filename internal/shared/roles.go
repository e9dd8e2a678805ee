package shared

import "strings"

// Role tags assigned to school accounts. Comparison is always
// case-insensitive; use RoleEquals rather than ==.
const (
	RoleAdmin            = "admin"
	RoleHeadTeacher      = "head_teacher"
	RoleClassTeacher     = "class_teacher"
	RoleSubjectTeacher   = "subject_teacher"
	RoleAssistantTeacher = "assistant_teacher"
	RoleStudent          = "student"
	RoleParent           = "parent"
	RoleLibrarian        = "librarian"
	RoleAccountant       = "accountant"
	RoleTransportManager = "transport_manager"
	RoleHostelWarden     = "hostel_warden"
	RoleReceptionist     = "receptionist"
	RoleNonTeachingStaff = "non_teaching_staff"
)

// AllRoles lists every recognised role tag.
func AllRoles() []string {
	return []string{
		RoleAdmin,
		RoleHeadTeacher,
		RoleClassTeacher,
		RoleSubjectTeacher,
		RoleAssistantTeacher,
		RoleStudent,
		RoleParent,
		RoleLibrarian,
		RoleAccountant,
		RoleTransportManager,
		RoleHostelWarden,
		RoleReceptionist,
		RoleNonTeachingStaff,
	}
}

// RoleEquals compares two role tags case-insensitively.
func RoleEquals(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// IsAdmin reports whether the identity carries the administrator role.
func (id *Identity) IsAdmin() bool {
	return id != nil && RoleEquals(id.Role, RoleAdmin)
}
