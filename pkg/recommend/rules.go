package recommend

import "fmt"

// Rule groups. Within a group the first matching rule wins; every group
// contributes at most one recommendation.
const (
	GroupChurn = "churn"
	GroupValue = "value"
)

// Rule is one row of the decision table. When is a CEL expression over the
// Facts variables and must evaluate to a bool.
type Rule struct {
	ID     string
	Group  string
	When   string
	Action Action
	Reason func(Facts) string
}

func fixed(s string) func(Facts) string {
	return func(Facts) string { return s }
}

// DefaultRules is the decision table applied to every customer.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:     "churn-lapsed",
			Group:  GroupChurn,
			When:   `churn_risk > 0.7 && days_since_last_order > 45`,
			Action: ActionCall,
			Reason: func(f Facts) string {
				return fmt.Sprintf("High churn risk customer hasn't ordered in %d days - needs immediate personal attention", f.DaysSinceLastOrder)
			},
		},
		{
			ID:     "churn-reengage",
			Group:  GroupChurn,
			When:   `churn_risk > 0.7`,
			Action: ActionEmail,
			Reason: fixed("High churn risk customer needs re-engagement campaign with special offers"),
		},
		{
			ID:     "value-bundle",
			Group:  GroupValue,
			When:   `rfm_score > 70 && avg_order_value > 20.0`,
			Action: ActionOfferBundle,
			Reason: func(f Facts) string {
				return fmt.Sprintf("High-value customer ($%.2f AOV) - perfect candidate for premium product bundles", f.AvgOrderValue)
			},
		},
		{
			ID:     "value-personal",
			Group:  GroupValue,
			When:   `rfm_score > 70`,
			Action: ActionCall,
			Reason: fixed("High RFM score customer deserves personal attention to strengthen relationship"),
		},
		{
			ID:     "mid-few-orders",
			Group:  GroupValue,
			When:   `rfm_score > 40 && rfm_score <= 70 && total_orders < 3`,
			Action: ActionPromo,
			Reason: fixed("Medium-value customer with few orders - promotional offers could increase frequency"),
		},
		{
			ID:     "mid-consistent",
			Group:  GroupValue,
			When:   `rfm_score > 40 && rfm_score <= 70`,
			Action: ActionEmail,
			Reason: fixed("Consistent customer - maintain engagement with regular email communication"),
		},
		{
			ID:     "low-winback",
			Group:  GroupValue,
			When:   `rfm_score <= 40 && days_since_last_order > 60`,
			Action: ActionPromo,
			Reason: func(f Facts) string {
				return fmt.Sprintf("Low engagement customer inactive for %d days - win-back promotion needed", f.DaysSinceLastOrder)
			},
		},
		{
			ID:     "low-nurture",
			Group:  GroupValue,
			When:   `rfm_score <= 40`,
			Action: ActionEmail,
			Reason: fixed("Low RFM customer - basic email nurturing to build relationship"),
		},
	}
}

// fillers pad short lists, tried in order.
var fillers = []Recommendation{
	{Action: ActionEmail, Reason: "Follow up with product updates and company news"},
	{Action: ActionPromo, Reason: "Offer seasonal promotion to drive additional purchases"},
}

// Fallback is returned when the rule table cannot be evaluated.
func Fallback() []Recommendation {
	return []Recommendation{
		{Action: ActionEmail, Reason: "Standard follow-up communication"},
		{Action: ActionCall, Reason: "Personal check-in with customer"},
		{Action: ActionPromo, Reason: "General promotional offer"},
	}
}
