package scoring

// Churn thresholds that move the priority tier.
const (
	HighChurnThreshold = 0.7
	LowChurnThreshold  = 0.3
)

// PriorityTier maps an rfm score to a tier in [1,5] and nudges it by one
// for very high or very low churn risk. Boundaries resolve upward.
func PriorityTier(rfmScore int, churnRisk float64) int {
	var tier int
	switch {
	case rfmScore >= 80:
		tier = 5
	case rfmScore >= 60:
		tier = 4
	case rfmScore >= 40:
		tier = 3
	case rfmScore >= 20:
		tier = 2
	default:
		tier = 1
	}

	if churnRisk > HighChurnThreshold {
		tier = max(1, tier-1)
	} else if churnRisk < LowChurnThreshold {
		tier = min(5, tier+1)
	}
	return tier
}

// PriorityLabel names a tier for reports.
func PriorityLabel(tier int) string {
	switch tier {
	case 5:
		return "Critical"
	case 4:
		return "High"
	case 3:
		return "Medium"
	case 2:
		return "Low"
	default:
		return "Minimal"
	}
}

// RFMLevel buckets an rfm score.
func RFMLevel(score int) string {
	switch {
	case score >= 70:
		return "High"
	case score >= 40:
		return "Medium"
	default:
		return "Low"
	}
}

// ChurnLevel buckets a churn risk.
func ChurnLevel(risk float64) string {
	switch {
	case risk >= 0.7:
		return "High"
	case risk >= 0.4:
		return "Medium"
	default:
		return "Low"
	}
}

// ChurnUrgency says how soon a customer at this risk should be contacted.
func ChurnUrgency(risk float64) string {
	switch {
	case risk >= 0.8:
		return "Immediate"
	case risk >= 0.6:
		return "Soon"
	default:
		return "Monitor"
	}
}
