package db

import (
	"database/sql/driver"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// TextArray is a list of strings stored as text[] on Postgres and as the
// array literal ("{a,b}") in a text column elsewhere.
type TextArray []string

func (a TextArray) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	return pq.StringArray(a).Value()
}

func (a *TextArray) Scan(src any) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*a = TextArray(arr)
	return nil
}

func (TextArray) GormDBDataType(d *gorm.DB, _ *schema.Field) string {
	if IsPostgres(d) {
		return "text[]"
	}
	return "text"
}
