// Package notify tells listeners that a quote was issued.
package notify

import (
	"fmt"
	"time"

	"github.com/icodeforyou/bessquote/convert"
	"github.com/icodeforyou/bessquote/quote"
	"github.com/icodeforyou/bessquote/types/maybe"
)

type OptionSummary struct {
	Tier         string               `json:"tier"`
	StorageKW    float64              `json:"storageKW"`
	StorageKWh   float64              `json:"storageKWh"`
	TotalCapex   float64              `json:"totalCapex"`
	NPV          float64              `json:"npv"`
	PaybackYears maybe.Maybe[float64] `json:"paybackYears"`
}

// Summary is the part of a stored quote that is broadcast, never the full
// signed document.
type Summary struct {
	ID           string          `json:"id"`
	Industry     string          `json:"industry"`
	Confidence   quote.Status    `json:"confidence"`
	Signature    string          `json:"signature"`
	Timestamp    time.Time       `json:"timestamp"`
	Options      []OptionSummary `json:"options"`
	Deviations   int             `json:"deviations"`
	Degradations int             `json:"degradations"`
}

func Summarize(id, industry string, q *quote.AuthenticatedQuote) (Summary, error) {
	p, err := q.Payload()
	if err != nil {
		return Summary{}, fmt.Errorf("summarize quote %s: %w", id, err)
	}

	options := make([]OptionSummary, len(p.Options))
	for i, o := range p.Options {
		options[i] = summarizeOption(o)
	}

	return Summary{
		ID:           id,
		Industry:     industry,
		Confidence:   q.Confidence(),
		Signature:    q.Signature(),
		Timestamp:    q.Timestamp(),
		Options:      options,
		Deviations:   len(p.Deviations),
		Degradations: len(p.Degradations),
	}, nil
}

// Money is rounded to cents and payback to a tenth of a year. Sizes are
// kept as computed.
func summarizeOption(o quote.QuoteOption) OptionSummary {
	return OptionSummary{
		Tier:         o.Tier,
		StorageKW:    o.Sizing.StorageKW,
		StorageKWh:   o.Sizing.StorageKWh,
		TotalCapex:   convert.Cents(o.Financial.TotalCapex),
		NPV:          convert.Cents(o.Financial.NPV),
		PaybackYears: convert.Years(o.Financial.SimplePaybackYears),
	}
}
