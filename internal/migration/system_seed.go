package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type resourceTypeSeed struct {
	Code     string
	Name     string
	LimitKey string
	Scoped   bool
	IsActive bool
}

func seedSystemImmutableData(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("system seed requires database handle")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin system seed transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := seedResourceTypes(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit system seed transaction: %w", err)
	}
	return nil
}

// seedResourceTypes keeps the billable resource vocabulary queryable for
// reporting. The authoritative taxonomy is compiled into the catalog package;
// this table mirrors it.
func seedResourceTypes(ctx context.Context, tx *sql.Tx) error {
	seeds := []resourceTypeSeed{
		{Code: "child", Name: "Child", LimitKey: "children", Scoped: false, IsActive: true},
		{Code: "school", Name: "School", LimitKey: "schools", Scoped: false, IsActive: true},
		{Code: "staff", Name: "Staff member", LimitKey: "staff", Scoped: false, IsActive: true},
		{Code: "student", Name: "Student", LimitKey: "students_per_staff", Scoped: true, IsActive: true},
		{Code: "employee", Name: "Employee", LimitKey: "employees_per_staff", Scoped: true, IsActive: true},
	}

	const stmt = `
		INSERT INTO resource_types (code, name, limit_key, scoped, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name,
		    limit_key = EXCLUDED.limit_key,
		    scoped = EXCLUDED.scoped,
		    is_active = EXCLUDED.is_active
	`

	for _, seed := range seeds {
		if _, err := tx.ExecContext(ctx, stmt, seed.Code, seed.Name, seed.LimitKey, seed.Scoped, seed.IsActive); err != nil {
			return fmt.Errorf("seed resource type %s: %w", seed.Code, err)
		}
	}
	return nil
}
