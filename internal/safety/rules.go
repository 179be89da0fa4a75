// Package safety gates quotes before they are treated as final. Evaluate is a
// pure rule check; Validator adds the audit trail and alert dispatch around it.
package safety

import (
	"fmt"
	"math"

	"github.com/mmamrila/aiquoting-sub001/internal/pricing"
)

// Severity of a triggered rule.
type Severity string

const (
	SeverityStop      Severity = "STOP_PROCESSING"
	SeverityAttention Severity = "ATTENTION_NEEDED"
	SeverityVerify    Severity = "VERIFY_CALCULATION"
)

// Kind identifies a rule.
type Kind string

const (
	KindCriticalAmount       Kind = "CRITICAL_AMOUNT_EXCEEDED"
	KindExcessiveUsers       Kind = "EXCESSIVE_USER_COUNT"
	KindPricePerUser         Kind = "PRICE_PER_USER_OUT_OF_RANGE"
	KindWrongSystemMultiSite Kind = "WRONG_SYSTEM_FOR_MULTISITE"
	KindCapacityExceeded     Kind = "SYSTEM_CAPACITY_EXCEEDED"
	KindHighValue            Kind = "HIGH_VALUE_QUOTE"
	KindLowMultiSiteTotal    Kind = "LOW_MULTISITE_TOTAL"
)

// Thresholds.
const (
	MaxAmount          = 2_000_000.0
	MaxUsers           = 5000
	MinPricePerUser    = 200.0
	MaxPricePerUser    = 10_000.0
	HighValueAmount    = 100_000.0
	MinMultiSiteAmount = 5000.0
)

// Issue is one triggered rule.
type Issue struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Action   string   `json:"action,omitempty"`
}

// QuoteData is what the validator needs to know about a quote.
type QuoteData struct {
	SessionID   string  `json:"session_id"`
	QuoteNumber string  `json:"quote_number,omitempty"`
	TotalAmount float64 `json:"total_amount" validate:"gte=0"`
	UserCount   int     `json:"user_count" validate:"gte=0"`
	SystemType  string  `json:"system_type"`
	SiteCount   int     `json:"site_count" validate:"gte=0"`
	MultiSite   bool    `json:"multi_site"`
}

// IsMultiSite reports whether the quote spans more than one site.
func (q QuoteData) IsMultiSite() bool {
	return q.MultiSite || q.SiteCount > 1
}

// Result is the outcome of an evaluation. It is never an error: callers
// decide whether to persist or escalate.
type Result struct {
	IsValid        bool    `json:"is_valid"`
	Errors         []Issue `json:"errors"`
	Warnings       []Issue `json:"warnings"`
	RequiresReview bool    `json:"requires_review"`
}

// Kinds returns the kinds of every error and warning, errors first.
func (r Result) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.Errors)+len(r.Warnings))
	for _, e := range r.Errors {
		kinds = append(kinds, e.Kind)
	}
	for _, w := range r.Warnings {
		kinds = append(kinds, w.Kind)
	}
	return kinds
}

// Has reports whether a kind was triggered.
func (r Result) Has(kind Kind) bool {
	for _, k := range r.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func stop(kind Kind, format string, args ...any) Issue {
	return Issue{Kind: kind, Severity: SeverityStop, Message: fmt.Sprintf(format, args...), Action: "block_quote"}
}

// Evaluate applies every rule to q.
func Evaluate(q QuoteData) Result {
	r := Result{Errors: []Issue{}, Warnings: []Issue{}}

	if q.TotalAmount > MaxAmount {
		r.Errors = append(r.Errors, stop(KindCriticalAmount,
			"quote amount $%.2f exceeds the $%.0f limit", q.TotalAmount, MaxAmount))
	}
	if q.UserCount > MaxUsers {
		r.Errors = append(r.Errors, stop(KindExcessiveUsers,
			"user count %d exceeds the maximum of %d", q.UserCount, MaxUsers))
	}
	if q.UserCount > 0 {
		perUser := q.TotalAmount / float64(q.UserCount)
		if perUser < MinPricePerUser || perUser > MaxPricePerUser {
			r.Errors = append(r.Errors, stop(KindPricePerUser,
				"price per user $%.2f is outside $%.0f-$%.0f", perUser, MinPricePerUser, MaxPricePerUser))
		}
	}

	multiSite := q.IsMultiSite()
	if multiSite && pricing.IsBasic(q.SystemType) {
		r.Errors = append(r.Errors, stop(KindWrongSystemMultiSite,
			"%s cannot serve a multi-site deployment", q.SystemType))
	}
	if profile, ok := pricing.Profile(q.SystemType); ok && q.UserCount > 0 {
		sites := max(q.SiteCount, 1)
		perSite := int(math.Ceil(float64(q.UserCount) / float64(sites)))
		if perSite > profile.MaxUsersPerSite {
			r.Errors = append(r.Errors, stop(KindCapacityExceeded,
				"%d users per site exceeds %s capacity of %d", perSite, profile.Name, profile.MaxUsersPerSite))
		}
	}

	if q.TotalAmount > HighValueAmount {
		r.Warnings = append(r.Warnings, Issue{
			Kind:     KindHighValue,
			Severity: SeverityAttention,
			Message:  fmt.Sprintf("high value quote of $%.2f", q.TotalAmount),
			Action:   "notify_manager",
		})
	}
	if multiSite && q.TotalAmount < MinMultiSiteAmount {
		r.Warnings = append(r.Warnings, Issue{
			Kind:     KindLowMultiSiteTotal,
			Severity: SeverityVerify,
			Message:  fmt.Sprintf("multi-site total $%.2f is below $%.0f", q.TotalAmount, MinMultiSiteAmount),
			Action:   "verify_calculation",
		})
	}

	r.IsValid = len(r.Errors) == 0
	r.RequiresReview = len(r.Errors) > 0 || len(r.Warnings) > 0
	return r
}
