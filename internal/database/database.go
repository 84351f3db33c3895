package database

import (
	"fmt"

	"github.com/skydrive/backend/internal/config"
	"github.com/skydrive/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Folder{},
		&models.File{},
		&models.ShareLink{},
		&models.Session{},
	); err != nil {
		return err
	}

	// A share link references exactly one of folder/file.
	constraint := `
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1
    FROM pg_constraint
    WHERE conname = 'share_link_target_check'
  ) THEN
    ALTER TABLE share_links
    ADD CONSTRAINT share_link_target_check
    CHECK (
      (folder_id IS NOT NULL AND file_id IS NULL)
      OR
      (folder_id IS NULL AND file_id IS NOT NULL)
    );
  END IF;
END $$;`

	return db.Exec(constraint).Error
}
