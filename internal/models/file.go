package models

import "github.com/google/uuid"

type File struct {
	BaseModel
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	StoragePath string    `json:"storagePath" gorm:"type:text;not null"`
	ContentType string    `json:"contentType" gorm:"type:varchar(255);not null"`
	Size        int64     `json:"size" gorm:"not null;default:0"`
	FolderID    uuid.UUID `json:"folderID" gorm:"type:uuid;not null;index"`

	// Ownership is transitive through the folder; there is no direct
	// user foreign key on File.
	Folder *Folder `json:"folder,omitempty" gorm:"foreignKey:FolderID"`
}

func (File) TableName() string {
	return "files"
}
