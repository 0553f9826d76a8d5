package database

import "blueroom/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Subject{},
		&models.Background{},
		&models.Room{},
		&models.Participation{},
		&models.Message{},
	}
}
