package models

import (
	"fmt"

	"gorm.io/gorm"
)

// NextID assigns internal ids with the MAX+1 strategy instead of an
// auto-incrementing column. It must be called inside the same transaction
// as the insert that consumes the id: on postgres it takes a table lock so
// two concurrent creates cannot read the same maximum. sqlite (used in
// tests) allows a single writer at a time, which serializes the pair
// natively.
func NextID(tx *gorm.DB, model interface{}) (uint, error) {
	stmt := &gorm.Statement{DB: tx}
	if err := stmt.Parse(model); err != nil {
		return 0, fmt.Errorf("failed to resolve table for %T: %w", model, err)
	}
	table := stmt.Schema.Table

	if tx.Dialector.Name() == "postgres" {
		if err := tx.Exec("LOCK TABLE " + table + " IN SHARE ROW EXCLUSIVE MODE").Error; err != nil {
			return 0, fmt.Errorf("failed to lock %s: %w", table, err)
		}
	}

	var nextID uint
	row := tx.Raw("SELECT COALESCE(MAX(id), 0) + 1 FROM " + table).Row()
	if err := row.Scan(&nextID); err != nil {
		return 0, fmt.Errorf("failed to compute next id for %s: %w", table, err)
	}
	return nextID, nil
}
