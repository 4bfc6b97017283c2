package certificate

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// RedemptionData describes one redemption for certificate rendering.
type RedemptionData struct {
	HolderName        string
	HolderEmail       string
	BurnTransactionID string
	TotalKg           float64
	RedeemedAt        time.Time
	Allocations       []Allocation
}

// Allocation is one consumed purchase lot on the certificate.
type Allocation struct {
	ProjectName string
	AmountKg    float64
}

// Generator renders redemption certificates as PDF.
type Generator struct{}

// NewGenerator creates a certificate generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateRedemption renders a carbon offset redemption certificate.
func (g *Generator) GenerateRedemption(data *RedemptionData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 22)
	pdf.SetTextColor(34, 102, 68)
	pdf.CellFormat(0, 14, "Carbon Offset Redemption Certificate", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Arial", "", 12)
	holder := data.HolderName
	if holder == "" {
		holder = data.HolderEmail
	}
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, holder, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("has permanently retired %.2f kg CO2e of carbon offset credits.", data.TotalKg), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(242, 242, 242)
	pdf.CellFormat(120, 8, "Project", "1", 0, "L", true, 0, "")
	pdf.CellFormat(50, 8, "Amount (kg CO2e)", "1", 1, "R", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	for _, alloc := range data.Allocations {
		pdf.CellFormat(120, 8, alloc.ProjectName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 8, fmt.Sprintf("%.2f", alloc.AmountKg), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 6, fmt.Sprintf("Redeemed at: %s", data.RedeemedAt.UTC().Format(time.RFC3339)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Burn transaction: %s", data.BurnTransactionID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Explorer: https://hashscan.io/testnet/transaction/%s", data.BurnTransactionID), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
