package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt carries everything the renderer needs for one invoice receipt.
type Receipt struct {
	Reference   string
	IssuedAt    time.Time
	ProfileName string
	Description string
	Amount      float64
	Currency    string
	Status      string
	PaidAt      *time.Time
}

// ReceiptRenderer renders invoice receipts as A4 PDF documents.
type ReceiptRenderer struct {
	schoolName    string
	schoolAddress string
}

// NewReceiptRenderer constructs a renderer with the school letterhead.
func NewReceiptRenderer(schoolName, schoolAddress string) *ReceiptRenderer {
	if schoolName == "" {
		schoolName = "École de Natation"
	}
	return &ReceiptRenderer{schoolName: schoolName, schoolAddress: schoolAddress}
}

// Render produces the PDF bytes for a receipt.
func (r *ReceiptRenderer) Render(receipt Receipt) ([]byte, error) {
	if receipt.Reference == "" {
		return nil, fmt.Errorf("receipt requires an invoice reference")
	}
	currency := receipt.Currency
	if currency == "" {
		currency = "HTG"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(r.schoolName), "", 1, "C", false, 0, "")
	if r.schoolAddress != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(r.schoolAddress), "", 1, "C", false, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, tr("Reçu de paiement"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	rows := [][2]string{
		{"Référence", receipt.Reference},
		{"Date d'émission", receipt.IssuedAt.Format("02/01/2006")},
		{"Client", receipt.ProfileName},
		{"Détail", receipt.Description},
		{"Montant", fmt.Sprintf("%.2f %s", receipt.Amount, currency)},
		{"Statut", receipt.Status},
	}
	if receipt.PaidAt != nil {
		rows = append(rows, [2]string{"Payée le", receipt.PaidAt.Format("02/01/2006")})
	}

	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(50, 8, tr(row[0]), "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(130, 8, tr(row[1]), "1", 1, "L", false, 0, "")
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Document généré le %s", time.Now().Format("02/01/2006 15:04"))), "", 1, "L", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
