package pdf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ReceiptData is a single recorded fee payment.
type ReceiptData struct {
	School        Party
	Student       Party
	ReceiptNumber string
	PaymentDate   string
	PaymentMode   string
	AcademicYear  string
	FeeComponent  string
	AmountPaid    string
	Remarks       string

	// Outstanding is the student's balance after this payment, when known.
	Outstanding string
}

func (p *PDFProvider) GenerateFeeReceipt(ctx context.Context, receipt ReceiptData) (io.Reader, error) {
	if strings.TrimSpace(receipt.ReceiptNumber) == "" {
		return nil, errors.New("receipt number is required")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Fee Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "No. "+receipt.ReceiptNumber, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
			Top:   4,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Payment date: "+receipt.PaymentDate, props.Text{Top: 0}),
			text.New("Payment mode: "+receipt.PaymentMode, props.Text{Top: 4}),
			text.New("Academic year: "+receipt.AcademicYear, props.Text{Top: 8}),
		),
		col.New(6),
	)

	m.AddRow(35,
		partyCol(6, receipt.School, ""),
		partyCol(6, receipt.Student, "Received from"),
	)

	m.AddRow(15,
		text.NewCol(12, receipt.AmountPaid+" received on "+receipt.PaymentDate, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(8, "Fee component", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(12,
		text.NewCol(8, receipt.FeeComponent, props.Text{Size: 9}),
		text.NewCol(4, receipt.AmountPaid, props.Text{Size: 9, Align: align.Right}),
	)

	if receipt.Outstanding != "" {
		m.AddRow(10,
			col.New(8),
			text.NewCol(2, "Balance", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.NewCol(2, receipt.Outstanding, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		)
	}
	if receipt.Remarks != "" {
		m.AddRow(15,
			text.NewCol(12, "Remarks: "+receipt.Remarks, props.Text{Size: 9, Top: 5}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func partyCol(size int, party Party, heading string) core.Col {
	c := col.New(size)
	top := 0.0
	if heading != "" {
		c.Add(text.New(heading, props.Text{Style: fontstyle.Bold}))
		top += 5
		c.Add(text.New(party.Name, props.Text{Top: top}))
	} else {
		c.Add(text.New(party.Name, props.Text{Style: fontstyle.Bold}))
	}
	for _, line := range party.Lines {
		top += 5
		c.Add(text.New(line, props.Text{Top: top}))
	}
	return c
}
