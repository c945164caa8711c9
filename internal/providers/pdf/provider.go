package pdf

import (
	"context"
	"io"
)

// Provider renders fee documents. Amounts arrive preformatted.
type Provider interface {
	GenerateFeeReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
	GenerateFeeStatement(ctx context.Context, data StatementData) (io.Reader, error)
}

// Party is the school or the student block printed in a document header.
type Party struct {
	Name  string
	Lines []string
}

type LineItem struct {
	Description string
	Due         string
	Paid        string
	Outstanding string
	Status      string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateFeeReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	return nil, nil
}

func (p *NoOpProvider) GenerateFeeStatement(ctx context.Context, data StatementData) (io.Reader, error) {
	return nil, nil
}
