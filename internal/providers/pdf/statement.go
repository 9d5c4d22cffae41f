package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateUsageStatement(ctx context.Context, data StatementData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Usage Statement", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New(data.OwnerName, props.Text{Style: fontstyle.Bold}),
			text.New(data.OwnerEmail, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Plan: "+data.PackageName, props.Text{Top: 0}),
			text.New("Status: "+data.Status, props.Text{Top: 4}),
			text.New("Period: "+data.PeriodStart+" to "+data.PeriodEnd, props.Text{Top: 8}),
			text.New("Generated: "+data.GeneratedAt, props.Text{Top: 12}),
		),
	)

	m.AddRow(10,
		text.NewCol(4, "Resource", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Scope", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "In use", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Limit", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(1, "Free", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, row := range data.Rows {
		scope := row.Scope
		if scope == "" {
			scope = "-"
		}
		m.AddRow(8,
			text.NewCol(4, row.Resource, props.Text{Size: 9}),
			text.NewCol(3, scope, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", row.Current), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, fmt.Sprintf("%d", row.Limit), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(1, fmt.Sprintf("%d", row.Remaining), props.Text{Size: 9, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
