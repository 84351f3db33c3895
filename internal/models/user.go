package models

type User struct {
	BaseModel
	Username     string   `json:"username" gorm:"type:varchar(255);uniqueIndex;not null"`
	Email        *string  `json:"email,omitempty" gorm:"type:varchar(50)"`
	PasswordHash string   `json:"-" gorm:"type:text;not null"`
	Folders      []Folder `json:"-" gorm:"foreignKey:UserID"`
}

func (User) TableName() string {
	return "users"
}
