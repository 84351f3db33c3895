package models

import "github.com/google/uuid"

const (
	// RootFolderName is the name given to the single parentless folder
	// created for every user at sign-up.
	RootFolderName = "My Docs"

	// DefaultSubfolderName is the name new subfolders start with.
	DefaultSubfolderName = "New Folder"
)

type Folder struct {
	BaseModel
	Name     string     `json:"name" gorm:"type:varchar(255);not null"`
	UserID   uuid.UUID  `json:"userID" gorm:"type:uuid;not null;index"`
	ParentID *uuid.UUID `json:"parentID,omitempty" gorm:"type:uuid;index"`

	Parent     *Folder  `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Subfolders []Folder `json:"subfolders,omitempty" gorm:"foreignKey:ParentID"`
	Files      []File   `json:"files,omitempty" gorm:"foreignKey:FolderID"`
	Owner      User     `json:"-" gorm:"foreignKey:UserID;references:ID"`
}

func (Folder) TableName() string {
	return "folders"
}

// IsRoot reports whether this is the user's root folder.
func (f *Folder) IsRoot() bool {
	return f.ParentID == nil
}
