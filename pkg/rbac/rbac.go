package rbac

import "fmt"

// 权限常量
const (
	PermissionReadNotifications  = "notifications:read"
	PermissionClearNotifications = "notifications:clear"
	PermissionSendTest           = "notifications:test"
	PermissionWritePreferences   = "preferences:write"
	PermissionRunPasses          = "passes:run"
)

// 角色常量
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var rolePermissions = map[string][]string{
	RoleUser: {
		PermissionReadNotifications,
		PermissionClearNotifications,
		PermissionSendTest,
		PermissionWritePreferences,
	},
	RoleAdmin: {
		PermissionReadNotifications,
		PermissionClearNotifications,
		PermissionSendTest,
		PermissionWritePreferences,
		PermissionRunPasses,
	},
}

// NormalizeRole 未携带 role claim 的 token 视为普通用户
func NormalizeRole(role string) string {
	if _, ok := rolePermissions[role]; ok {
		return role
	}
	return RoleUser
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role, permission string) bool {
	for _, p := range rolePermissions[NormalizeRole(role)] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 返回错误而不是布尔值，便于处理
func CheckPermission(userID int64, role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			UserID:     userID,
			Permission: permission,
		}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	UserID     int64
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("user %d lacks permission %s", e.UserID, e.Permission)
}
