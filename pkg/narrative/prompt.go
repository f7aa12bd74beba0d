package narrative

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/llm"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/scoring"
)

const systemPrompt = "You are a sales analyst. Provide concise, actionable customer behavior summaries for sales representatives. Respond with plain text only, no formatting."

// Input is everything the summary may mention about one customer.
type Input struct {
	CustomerID string
	Customer   *ledger.Customer
	Summary    ledger.OrderSummary
	Behavior   ledger.PurchaseBehavior
	Scores     scoring.Scores
}

var printer = message.NewPrinter(language.English)

// Money formats an amount with two decimals and thousands separators.
func Money(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// BuildMessages renders the chat request for in.
func BuildMessages(in Input) []llm.Message {
	var name, segment, territory string
	if in.Customer != nil {
		name, segment, territory = in.Customer.Name, in.Customer.Segment, in.Customer.Territory
	}

	days := "N/A"
	if in.Summary.DaysSinceLastOrder != nil {
		days = printer.Sprintf("%d", *in.Summary.DaysSinceLastOrder)
	}

	var products []string
	for _, p := range in.Behavior.TopProducts {
		products = append(products, printer.Sprintf("%s x%d", p.SKU, p.Quantity))
	}
	top := "none"
	if len(products) > 0 {
		top = strings.Join(products, ", ")
	}

	var b strings.Builder
	b.WriteString("Analyze this customer's purchase behavior and provide a concise summary (2-3 sentences):\n\n")
	printer.Fprintf(&b, "Customer: %s (%s)\n", orUnknown(name), in.CustomerID)
	printer.Fprintf(&b, "Segment: %s\n", orUnknown(segment))
	printer.Fprintf(&b, "Territory: %s\n\n", orUnknown(territory))
	b.WriteString("Purchase Behavior:\n")
	printer.Fprintf(&b, "- Total Orders: %d\n", in.Summary.TotalOrders)
	printer.Fprintf(&b, "- Total Spent: %s\n", Money(in.Summary.TotalSpent))
	printer.Fprintf(&b, "- Average Order Value: %s\n", Money(in.Summary.AvgOrderValue))
	printer.Fprintf(&b, "- Days Since Last Order: %s\n", days)
	printer.Fprintf(&b, "- Top Products: %s\n\n", top)
	b.WriteString("Scores:\n")
	printer.Fprintf(&b, "- RFM Score: %d/100\n", in.Scores.RFMScore)
	printer.Fprintf(&b, "- Churn Risk: %.2f\n", in.Scores.ChurnRisk)
	printer.Fprintf(&b, "- Priority Level: %d/5\n\n", in.Scores.Priority)
	b.WriteString("Provide a business-focused summary highlighting key insights about this customer's value, behavior patterns, and current status.\n")
	b.WriteString("Respond with ONLY the summary text, no JSON formatting.")

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}
}

// FallbackSummary is the one-line summary used when generation fails. It
// reads nothing but the order summary.
func FallbackSummary(customerID string, s ledger.OrderSummary) string {
	return printer.Sprintf("Customer %s: Analysis shows %d orders totaling %s. Manual review recommended.",
		customerID, s.TotalOrders, Money(s.TotalSpent))
}

// MissingDataSummary is used when the customer record could not be fetched.
const MissingDataSummary = "Unable to generate summary due to missing customer data"

// BehaviorLine describes ordering patterns in one sentence.
func BehaviorLine(s ledger.OrderSummary, b ledger.PurchaseBehavior) string {
	if !s.HasOrders() {
		return "No orders on record."
	}
	line := printer.Sprintf("%d orders, %s total, %s average.", s.TotalOrders, Money(s.TotalSpent), Money(s.AvgOrderValue))
	if len(b.TopProducts) > 0 {
		line += printer.Sprintf(" Buys mostly %s.", b.TopProducts[0].SKU)
	}
	if b.AvgDaysBetweenOrders != nil {
		line += printer.Sprintf(" Orders every %.1f days on average.", *b.AvgDaysBetweenOrders)
	}
	return line
}
