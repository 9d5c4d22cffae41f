// Package pdf renders downloadable documents for billing owners.
package pdf

import (
	"context"
	"io"
)

// StatementData feeds a usage statement document.
type StatementData struct {
	OwnerName   string
	OwnerEmail  string
	PackageName string
	Status      string
	PeriodStart string
	PeriodEnd   string
	GeneratedAt string

	Rows []StatementRow
}

// StatementRow is one resource line on the statement.
type StatementRow struct {
	Resource  string
	Scope     string
	Current   int64
	Limit     int64
	Remaining int64
}

type Provider interface {
	GenerateUsageStatement(ctx context.Context, data StatementData) (io.Reader, error)
}
