package model

// 用户角色
const (
	RoleStudent = "student"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
)

// User 用户表 — 对应 users（身份由外部服务维护，这里只用于校验与渲染）
type User struct {
	UserID   string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	FullName string  `gorm:"type:varchar(200);not null"                     json:"full_name"`
	Email    *string `gorm:"type:varchar(255)"                              json:"email,omitempty"`
	Role     string  `gorm:"type:varchar(20);not null;default:'student'"    json:"role"`
	GroupID  *string `gorm:"type:uuid"                                      json:"group_id,omitempty"` // 学生所属班级
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// CanTeach 只有教职工与管理员可以作为授课教师
func (u *User) CanTeach() bool {
	return u.Role == RoleStaff || u.Role == RoleAdmin
}
