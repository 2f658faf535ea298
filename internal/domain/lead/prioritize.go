package lead

import (
	"fmt"
	"sort"
	"time"
)

// Candidate is one scored customer offered to Prioritize.
type Candidate struct {
	CustomerID   string
	CustomerName string
	Score        LeadScore
	// OfferNames are product names already matched for the customer.  When
	// empty, Prioritize derives generic offers from the score.
	OfferNames []string
}

// PrioritizedLead is a queue entry for the sales team.
type PrioritizedLead struct {
	LeadID         string    `json:"lead_id"`
	CustomerID     string    `json:"customer_id"`
	CustomerName   string    `json:"customer_name,omitempty"`
	Score          LeadScore `json:"lead_score"`
	QueuePosition  int       `json:"queue_position"`
	FollowUpAt     time.Time `json:"follow_up_date"`
	RelevantOffers []string  `json:"relevant_offers"`
}

// PrioritizeOptions bounds the queue.
type PrioritizeOptions struct {
	MaxLeads   int
	MinOverall float64
}

// DefaultPrioritizeOptions returns a queue of at most 100 leads scoring 20 or
// more.
func DefaultPrioritizeOptions() PrioritizeOptions {
	return PrioritizeOptions{MaxLeads: 100, MinOverall: 20}
}

// Prioritize filters candidates below MinOverall, orders the rest by
// priority score, urgency and revenue potential (all descending, input order
// on ties) and keeps the first MaxLeads.  Queue positions start at 1.
func Prioritize(candidates []Candidate, opts PrioritizeOptions, now time.Time) []PrioritizedLead {
	qualified := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score.OverallScore >= opts.MinOverall {
			qualified = append(qualified, c)
		}
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		a, b := qualified[i].Score, qualified[j].Score
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		if a.UrgencyFactor != b.UrgencyFactor {
			return a.UrgencyFactor > b.UrgencyFactor
		}
		return a.RevenuePotential > b.RevenuePotential
	})

	if opts.MaxLeads > 0 && len(qualified) > opts.MaxLeads {
		qualified = qualified[:opts.MaxLeads]
	}

	out := make([]PrioritizedLead, 0, len(qualified))
	for i, c := range qualified {
		offers := c.OfferNames
		if len(offers) == 0 {
			offers = FallbackOffers(c.Score)
		}
		out = append(out, PrioritizedLead{
			LeadID:         LeadID(c.CustomerID, now),
			CustomerID:     c.CustomerID,
			CustomerName:   c.CustomerName,
			Score:          c.Score,
			QueuePosition:  i + 1,
			FollowUpAt:     FollowUpDate(c.Score.Priority, now),
			RelevantOffers: offers,
		})
	}
	return out
}

// LeadID formats the queue identifier of a customer.
func LeadID(customerID string, now time.Time) string {
	return fmt.Sprintf("lead_%s_%d", customerID, now.Unix())
}

// FollowUpDate returns when a lead of priority p should next be contacted.
func FollowUpDate(p Priority, now time.Time) time.Time {
	switch p {
	case PriorityCritical:
		return now.Add(4 * time.Hour)
	case PriorityHigh:
		return now.AddDate(0, 0, 1)
	case PriorityMedium:
		return now.AddDate(0, 0, 2)
	case PriorityLow:
		return now.AddDate(0, 0, 7)
	default:
		return now.AddDate(0, 0, 30)
	}
}

// FallbackOffers names generic offers suited to a score when no catalog match
// is available.
func FallbackOffers(s LeadScore) []string {
	var offers []string
	switch s.Priority {
	case PriorityCritical:
		offers = append(offers, "VIP retention package", "Premium loyalty bonus")
	case PriorityHigh:
		offers = append(offers, "Priority customer upgrade", "Limited time promotion")
	}
	switch {
	case s.RevenuePotential >= 80:
		offers = append(offers, "Enterprise solution bundle")
	case s.RevenuePotential >= 60:
		offers = append(offers, "Premium plan upgrade")
	}
	if s.ConversionProbability >= 75 {
		offers = append(offers, "New customer incentive")
	}
	if s.UrgencyFactor >= 70 {
		offers = append(offers, "Retention specialist consultation", "Immediate upgrade discount")
	}
	if offers == nil {
		return []string{}
	}
	return offers
}
