package receipt

import (
	"fmt"
	"strings"

	"kasirinaja/register/internal/domain"
)

const (
	renderWidth   = 40
	defaultFooter = "Thank you for shopping with us!"
)

// Render lays the receipt out as fixed-width text for display.
func Render(r domain.Receipt, storeName string) string {
	if strings.TrimSpace(storeName) == "" {
		storeName = "SuperMart"
	}
	rule := strings.Repeat("-", renderWidth)

	var b strings.Builder
	b.WriteString(center(storeName))
	b.WriteString("\n")
	b.WriteString(center("Receipt #" + r.ID))
	b.WriteString("\n")
	b.WriteString(center(r.IssuedAt.Format("2006-01-02 15:04:05")))
	b.WriteString("\n")
	if r.RegisterID != "" {
		b.WriteString(center("Register " + r.RegisterID))
		b.WriteString("\n")
	}
	b.WriteString(rule)
	b.WriteString("\n")

	for _, line := range r.Lines {
		b.WriteString(line.Name)
		b.WriteString("\n")
		var detail string
		if line.IsWeighed {
			detail = fmt.Sprintf("  %s kg x %s/kg", line.WeightKg.StringFixed(3), line.PricePerKg)
		} else {
			detail = fmt.Sprintf("  %d x %s", line.Quantity, line.UnitPrice)
		}
		b.WriteString(columns(detail, line.LineTotal.String()))
		b.WriteString("\n")
	}

	b.WriteString(rule)
	b.WriteString("\n")
	b.WriteString(columns("TOTAL", r.Total.String()))
	b.WriteString("\n")
	b.WriteString(columns("Cash Paid", r.Tendered.String()))
	b.WriteString("\n")
	b.WriteString(columns("Change", r.Change.String()))
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("\n")
	b.WriteString(center(defaultFooter))
	b.WriteString("\n")
	return b.String()
}

func columns(left, right string) string {
	gap := renderWidth - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func center(s string) string {
	pad := (renderWidth - len(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}
