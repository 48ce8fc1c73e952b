package invoices

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phpdave11/gofpdf"

	domain "github.com/snapedits/api/internal/domain"
)

// Config controls where invoice PDFs are written and how they are addressed.
type Config struct {
	// Dir is the directory invoice files are written to. Created if missing.
	Dir string
	// BaseURL is the public prefix under which invoices are served, without a
	// trailing slash.
	BaseURL string
	// CompanyName appears in the invoice header.
	CompanyName string
}

// Generator renders order invoices as PDF files on local disk, keyed by
// invoice number.
type Generator struct {
	dir     string
	baseURL string
	company string
}

// NewGenerator prepares the invoice directory and returns a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, errors.New("invoices: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("invoices: create directory: %w", err)
	}

	company := strings.TrimSpace(cfg.CompanyName)
	if company == "" {
		company = "SnapEdits"
	}

	return &Generator{
		dir:     dir,
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		company: company,
	}, nil
}

// Generate renders the invoice PDF for the order and returns the file path.
// An existing file for the same invoice number is overwritten.
func (g *Generator) Generate(ctx context.Context, order domain.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	number := sanitizeInvoiceNumber(order.InvoiceNumber)
	if number == "" {
		return "", errors.New("invoices: order has no invoice number")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Invoice %s", order.InvoiceNumber), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.Cell(120, 12, g.company)
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 12, fmt.Sprintf("Invoice %s", order.InvoiceNumber), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Order %s", order.OrderNumber), "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 6, order.CreatedAt.Format("January 2, 2006"), "", 1, "R", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 6, "Billed to", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range billingLines(order.BillingAddress) {
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(100, 8, "Service", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 8, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 8, "Unit price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range order.Items {
		name := item.ServiceName
		if name == "" {
			name = item.ServiceID
		}
		amount := item.FinalPrice * int64(item.Quantity)
		pdf.CellFormat(100, 8, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 8, fmt.Sprintf("%d", item.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 8, formatMoney(item.FinalPrice, order.Currency), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 8, formatMoney(amount, order.Currency), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	pdf.CellFormat(155, 6, "Subtotal", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, formatMoney(order.Subtotal, order.Currency), "", 1, "R", false, 0, "")
	if order.Discount > 0 {
		label := "Discount"
		if order.CouponCode != "" {
			label = fmt.Sprintf("Discount (%s)", order.CouponCode)
		}
		pdf.CellFormat(155, 6, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, "-"+formatMoney(order.Discount, order.Currency), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(155, 8, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, formatMoney(order.Total, order.Currency), "", 1, "R", false, 0, "")

	path := g.Path(order.InvoiceNumber)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("invoices: write %s: %w", path, err)
	}
	return path, nil
}

// Path returns the on-disk location of the invoice file.
func (g *Generator) Path(invoiceNumber string) string {
	return filepath.Join(g.dir, sanitizeInvoiceNumber(invoiceNumber)+".pdf")
}

// URL returns the public address of the invoice file, or empty when no base
// URL is configured.
func (g *Generator) URL(invoiceNumber string) string {
	number := sanitizeInvoiceNumber(invoiceNumber)
	if g.baseURL == "" || number == "" {
		return ""
	}
	return g.baseURL + "/" + number + ".pdf"
}

// Remove deletes the invoice file. A missing file is not an error.
func (g *Generator) Remove(invoiceNumber string) error {
	number := sanitizeInvoiceNumber(invoiceNumber)
	if number == "" {
		return nil
	}
	if err := os.Remove(g.Path(invoiceNumber)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("invoices: remove %s: %w", number, err)
	}
	return nil
}

// sanitizeInvoiceNumber restricts the file name to a safe character set so an
// invoice number can never escape the invoice directory.
func sanitizeInvoiceNumber(number string) string {
	number = strings.TrimSpace(number)
	var b strings.Builder
	for _, r := range number {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func billingLines(addr domain.Address) []string {
	lines := make([]string, 0, 6)
	if addr.FullName != "" {
		lines = append(lines, addr.FullName)
	}
	if addr.Line1 != "" {
		lines = append(lines, addr.Line1)
	}
	if addr.Line2 != "" {
		lines = append(lines, addr.Line2)
	}
	locality := strings.TrimSpace(strings.Join(nonEmpty(addr.City, addr.State, addr.PostalCode), ", "))
	if locality != "" {
		lines = append(lines, locality)
	}
	if addr.Country != "" {
		lines = append(lines, addr.Country)
	}
	if addr.Email != "" {
		lines = append(lines, addr.Email)
	}
	return lines
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// formatMoney renders int64 cents with a currency symbol for known currencies.
func formatMoney(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	amount := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	switch strings.ToUpper(currency) {
	case "USD", "":
		return sign + "$" + amount
	case "EUR":
		return sign + "€" + amount
	case "GBP":
		return sign + "£" + amount
	default:
		return fmt.Sprintf("%s%s %s", sign, strings.ToUpper(currency), amount)
	}
}
