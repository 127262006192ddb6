package db

import "gorm.io/gorm"

// EnsureSchema creates a Postgres schema. It is a no-op on other dialects.
func EnsureSchema(d *gorm.DB, schema string) error {
	if !IsPostgres(d) {
		return nil
	}
	return d.Exec(`CREATE SCHEMA IF NOT EXISTS "` + schema + `"`).Error
}
