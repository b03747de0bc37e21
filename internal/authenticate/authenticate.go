// Package authenticate attributes every number of a quote to its source,
// flags prices far from the benchmark and signs the result.
package authenticate

import (
	"cmp"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/icodeforyou/bessquote/config"
	"github.com/icodeforyou/bessquote/internal/model"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyKey     = errors.New("authenticate: empty signing key")
	ErrBadSignature = errors.New("authenticate: signature does not match payload")
	ErrBadSeal      = errors.New("authenticate: seal does not match signature and timestamp")
)

type Status string

const (
	StatusVerified Status = "verified"
	StatusEstimate Status = "estimate"
)

// Issue is a validation problem found while authenticating. Any issue
// leaves the quote an estimate.
type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type Base struct {
	Load   model.LoadProfile     `json:"load"`
	Sizing model.EquipmentSizing `json:"sizing"`
}

// Payload is the signed content of a quote. Its JSON encoding is canonical:
// struct fields keep their declaration order and map keys are sorted.
type Payload struct {
	Request      json.RawMessage        `json:"request"`
	Base         Base                   `json:"base"`
	Options      []model.QuoteOption    `json:"options"`
	Sources      []model.SourceCitation `json:"sources"`
	Deviations   []model.Deviation      `json:"deviations"`
	Degradations []model.Degradation    `json:"degradations"`
	Issues       []Issue                `json:"issues"`
}

// Reference returns the benchmark unit price for a piece of equipment.
type Reference interface {
	Reference(equipment, tier string) (model.UnitPrice, bool)
}

type Input struct {
	Request      json.RawMessage
	Base         Base
	Options      []model.QuoteOption
	Citations    []model.SourceCitation // Sources not attached to a line item
	Degradations []model.Degradation
}

type Authenticator struct {
	key       []byte
	threshold decimal.Decimal
	cnfg      config.AppConfigAuthenticator
	now       func() time.Time
}

type Option func(*Authenticator)

// WithClock replaces time.Now as the source of the quote timestamp.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

func New(cnfg config.AppConfigAuthenticator, opts ...Option) Authenticator {
	a := Authenticator{
		key:       []byte(cnfg.SigningKey),
		threshold: decimal.NewFromFloat(cnfg.DeviationThreshold),
		cnfg:      cnfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// Authenticate collects sources and deviations, then signs and seals the
// payload. The returned quote can not be modified.
func (a Authenticator) Authenticate(in Input, ref Reference) (*AuthenticatedQuote, error) {
	p := Payload{
		Request:      in.Request,
		Base:         in.Base,
		Options:      in.Options,
		Sources:      collectSources(in.Citations, in.Options),
		Degradations: in.Degradations,
	}
	if p.Request == nil {
		p.Request = json.RawMessage("null")
	}

	for _, src := range p.Sources {
		if !a.cnfg.IsRecognizedSource(src.Source) {
			p.Issues = append(p.Issues, Issue{
				Field:  src.Field,
				Reason: fmt.Sprintf("source %q is not a recognized benchmark", src.Source),
			})
		}
	}

	for _, opt := range in.Options {
		p.Deviations = append(p.Deviations, a.deviations(opt, ref)...)
	}

	canonical, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("authenticate: encode payload: %w", err)
	}

	ts := a.now().UTC().Format(time.RFC3339Nano)
	signature := sign(a.key, canonical)

	status := StatusVerified
	if len(a.key) == 0 || len(p.Issues) > 0 {
		status = StatusEstimate
	}

	return &AuthenticatedQuote{
		canonical: canonical,
		signature: signature,
		seal:      sign(a.key, []byte(signature+"|"+ts)),
		timestamp: ts,
		status:    status,
	}, nil
}

func (a Authenticator) deviations(opt model.QuoteOption, ref Reference) []model.Deviation {
	var out []model.Deviation
	for _, item := range opt.Financial.LineItems {
		bench, ok := ref.Reference(item.Equipment, opt.Tier)
		if !ok || bench.Price <= 0 {
			continue
		}
		applied := decimal.NewFromFloat(item.UnitPrice)
		benchmark := decimal.NewFromFloat(bench.Price)
		dev := applied.Sub(benchmark).Div(benchmark)
		if dev.Abs().LessThanOrEqual(a.threshold) {
			continue
		}

		direction := "above"
		if dev.IsNegative() {
			direction = "below"
		}
		pct := dev.Mul(decimal.NewFromInt(100)).Round(2)
		out = append(out, model.Deviation{
			Tier:           opt.Tier,
			Equipment:      item.Equipment,
			AppliedPrice:   item.UnitPrice,
			BenchmarkPrice: bench.Price,
			DeviationPct:   pct.InexactFloat64(),
			Reason: fmt.Sprintf("applied price from %s is %s%% %s the %s benchmark",
				item.Citation.Source, pct.Abs().String(), direction, bench.Source),
		})
	}
	return out
}

// collectSources returns every distinct citation, sorted so the payload
// encodes the same way on every run.
func collectSources(extra []model.SourceCitation, opts []model.QuoteOption) []model.SourceCitation {
	all := slices.Clone(extra)
	for _, opt := range opts {
		for _, item := range opt.Financial.LineItems {
			all = append(all, item.Citation)
		}
	}
	slices.SortFunc(all, func(x, y model.SourceCitation) int {
		return cmp.Or(
			cmp.Compare(x.Field, y.Field),
			cmp.Compare(x.Source, y.Source),
			cmp.Compare(x.Vintage, y.Vintage),
			cmp.Compare(x.Confidence, y.Confidence),
		)
	})
	return slices.Compact(all)
}

func sign(key, data []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}
