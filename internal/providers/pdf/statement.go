package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// StatementData is a student's reconciled fee position for one academic year.
type StatementData struct {
	School       Party
	Student      Party
	AcademicYear string
	IssueDate    string
	Status       string

	Items []LineItem

	TotalBaseFee     string
	TotalDiscounts   string
	TotalDue         string
	TotalPaid        string
	TotalOutstanding string
}

func (p *PDFProvider) GenerateFeeStatement(ctx context.Context, statement StatementData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(15,
		text.NewCol(12, "Fee Statement", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(15,
		col.New(6).Add(
			text.New("Academic year: "+statement.AcademicYear, props.Text{Top: 0}),
			text.New("Date of issue: "+statement.IssueDate, props.Text{Top: 4}),
			text.New("Status: "+statement.Status, props.Text{Top: 8}),
		),
		col.New(6),
	)

	m.AddRow(35,
		partyCol(6, statement.School, ""),
		partyCol(6, statement.Student, "Student"),
	)

	m.AddRow(15,
		text.NewCol(12, statement.TotalOutstanding+" outstanding", props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(4, "Component", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Due", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Paid", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Outstanding", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Status", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range statement.Items {
		m.AddRow(12,
			text.NewCol(4, item.Description, props.Text{Size: 9}),
			text.NewCol(2, item.Due, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Paid, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Outstanding, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Status, props.Text{Size: 9, Align: align.Right}),
		)
	}

	totals := []struct {
		label string
		value string
		bold  bool
	}{
		{"Base fee", statement.TotalBaseFee, false},
		{"Discounts", statement.TotalDiscounts, false},
		{"Total due", statement.TotalDue, false},
		{"Paid", statement.TotalPaid, false},
		{"Outstanding", statement.TotalOutstanding, true},
	}
	for _, row := range totals {
		style := fontstyle.Normal
		if row.bold {
			style = fontstyle.Bold
		}
		m.AddRow(10,
			col.New(8),
			text.NewCol(2, row.label, props.Text{Style: style, Size: 9}),
			text.NewCol(2, row.value, props.Text{Style: style, Size: 9, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
