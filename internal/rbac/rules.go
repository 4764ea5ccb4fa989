package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"course:view",
		"exam:start",
		"exam:save",
		"exam:submit",
		"result:view-own",
	},
	"examiner": {
		"course:view",
		"course:manage",
		"question:manage",
		"grading:view",
		"grading:apply",
		"result:view-all",
		"monitor:view",
		"students:bulk_upsert",
		"students:delete",
	},
	"admin": {
		"*", // everything
	},
}
