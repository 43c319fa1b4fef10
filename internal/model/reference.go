package model

// Faculty 院系表 — 对应 faculties
type Faculty struct {
	FacultyID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"faculty_id"`
	Name      string `gorm:"type:varchar(200);not null"                     json:"name"`
	BaseModel
}

func (Faculty) TableName() string { return "faculties" }

// StudentGroup 班级表 — 对应 student_groups
type StudentGroup struct {
	GroupID   string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"group_id"`
	Name      string  `gorm:"type:varchar(100);not null"                     json:"name"`
	FacultyID *string `gorm:"type:uuid"                                      json:"faculty_id,omitempty"`
	BaseModel

	// 关联
	Faculty *Faculty `gorm:"foreignKey:FacultyID;references:FacultyID" json:"faculty,omitempty"`
}

func (StudentGroup) TableName() string { return "student_groups" }

// Room 教室表 — 对应 rooms
type Room struct {
	RoomID   string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"room_id"`
	Number   string  `gorm:"type:varchar(50);not null"                      json:"number"`
	Building *string `gorm:"type:varchar(100)"                              json:"building,omitempty"`
	BaseModel
}

func (Room) TableName() string { return "rooms" }

// roomPrefix 教室编号前缀
const roomPrefix = "教室 "

// Label 渲染为 "教室 <number> (<building>)"，无楼栋时省略括号部分
func (r *Room) Label() string {
	label := roomPrefix + r.Number
	if r.Building == nil || *r.Building == "" {
		return label
	}
	return label + " (" + *r.Building + ")"
}

// Subject 课程科目表 — 对应 subjects
type Subject struct {
	SubjectID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"subject_id"`
	Title     string `gorm:"type:varchar(200);not null"                     json:"title"`
	BaseModel
}

func (Subject) TableName() string { return "subjects" }
