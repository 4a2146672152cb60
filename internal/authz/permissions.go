package authz

import "github.com/noah-isme/ctp-api/internal/models"

// Permission names seeded at bootstrap and referenced by route guards.
const (
	PermManageUsers       = "MANAGE_USERS"
	PermManageRoles       = "MANAGE_ROLES"
	PermManagePermissions = "MANAGE_PERMISSIONS"

	PermReadSemester   = "READ_SEMESTER"
	PermWriteSemester  = "WRITE_SEMESTER"
	PermReadGroup      = "READ_GROUP"
	PermWriteGroup     = "WRITE_GROUP"
	PermReadProfessor  = "READ_PROFESSOR"
	PermWriteProfessor = "WRITE_PROFESSOR"
	PermReadStudent    = "READ_STUDENT"
	PermWriteStudent   = "WRITE_STUDENT"
	PermReadActivity   = "READ_ACTIVITY"
	PermWriteActivity  = "WRITE_ACTIVITY"
	PermReadExercise   = "READ_EXERCISE"
	PermWriteExercise  = "WRITE_EXERCISE"

	PermReadResolution   = "READ_RESOLUTION"
	PermSubmitResolution = "SUBMIT_RESOLUTION"
	PermGradeResolution  = "GRADE_RESOLUTION"
	PermDeleteResolution = "DELETE_RESOLUTION"

	PermViewLeaderboard = "VIEW_LEADERBOARD"
	PermUploadImage     = "UPLOAD_IMAGE"
	PermDeleteImage     = "DELETE_IMAGE"
)

// DefaultPermissions lists every built-in permission with a description.
var DefaultPermissions = map[string]string{
	PermManageUsers:       "Create, update and delete user accounts",
	PermManageRoles:       "Create, update and delete roles",
	PermManagePermissions: "Create, update and delete permissions",
	PermReadSemester:      "List and view semesters",
	PermWriteSemester:     "Create, update and delete semesters",
	PermReadGroup:         "List and view groups",
	PermWriteGroup:        "Create, update and delete groups",
	PermReadProfessor:     "List and view professors",
	PermWriteProfessor:    "Create, update and delete professors",
	PermReadStudent:       "List and view students",
	PermWriteStudent:      "Create, update and delete students",
	PermReadActivity:      "List and view activities",
	PermWriteActivity:     "Create, update and delete activities",
	PermReadExercise:      "List and view exercises",
	PermWriteExercise:     "Create, update and delete exercises",
	PermReadResolution:    "List and view resolutions",
	PermSubmitResolution:  "Submit resolutions",
	PermGradeResolution:   "Assign points to resolutions",
	PermDeleteResolution:  "Delete resolutions",
	PermViewLeaderboard:   "View group leaderboards",
	PermUploadImage:       "Upload images",
	PermDeleteImage:       "Delete images",
}

// DefaultRoles maps each built-in role to its permissions. ADMIN relies on the role bypass
// but still carries one permission so the role invariant holds.
var DefaultRoles = map[string][]string{
	models.RoleAdmin: {PermManageUsers, PermManageRoles, PermManagePermissions},
	models.RoleProfessor: {
		PermReadSemester, PermReadGroup, PermReadProfessor, PermReadStudent,
		PermReadActivity, PermWriteActivity, PermReadExercise, PermWriteExercise,
		PermReadResolution, PermGradeResolution, PermViewLeaderboard,
		PermUploadImage, PermDeleteImage,
	},
	models.RoleStudent: {
		PermReadActivity, PermReadExercise, PermReadResolution, PermSubmitResolution,
		PermViewLeaderboard, PermUploadImage,
	},
}
