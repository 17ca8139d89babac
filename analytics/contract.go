package analytics

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidInput is returned for malformed contracts or volatilities.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoConvergence is returned when the implied volatility solver cannot bracket a root
	// or runs out of iterations.
	ErrNoConvergence = errors.New("implied volatility did not converge")
	// ErrNoArbitrageViolation is returned when a market price lies outside the theoretical
	// bounds of the contract.
	ErrNoArbitrageViolation = errors.New("market price violates no-arbitrage bounds")
)

// OptionType is either a call or a put.
type OptionType int

const (
	Call OptionType = iota + 1
	Put
)

func (t OptionType) String() string {
	switch t {
	case Call:
		return "call"
	case Put:
		return "put"
	}
	return fmt.Sprintf("OptionType(%d)", int(t))
}

func (t OptionType) valid() bool {
	return t == Call || t == Put
}

// MarshalText lets option types travel as "call"/"put" in JSON and query strings.
func (t OptionType) MarshalText() ([]byte, error) {
	if !t.valid() {
		return nil, fmt.Errorf("%w: unknown option type %d", ErrInvalidInput, int(t))
	}
	return []byte(t.String()), nil
}

func (t *OptionType) UnmarshalText(b []byte) error {
	parsed, err := ParseOptionType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseOptionType accepts the spellings used by brokers and data vendors (call, c, ce, put, p, pe).
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c", "ce":
		return Call, nil
	case "put", "p", "pe":
		return Put, nil
	}
	return 0, fmt.Errorf("%w: option type %q", ErrInvalidInput, s)
}

// Contract holds everything the pricing kernel needs apart from volatility.
// TimeToExpiry is in years; rates and yields are continuously compounded.
type Contract struct {
	Spot          float64    `json:"spot"`
	Strike        float64    `json:"strike"`
	TimeToExpiry  float64    `json:"time_to_expiry"`
	RiskFreeRate  float64    `json:"risk_free_rate"`
	DividendYield float64    `json:"dividend_yield"`
	Type          OptionType `json:"type"`
}

// NewContract builds a validated contract.
func NewContract(optionType OptionType, spot, strike, timeToExpiry, riskFreeRate, dividendYield float64) (Contract, error) {
	c := Contract{
		Spot:          spot,
		Strike:        strike,
		TimeToExpiry:  timeToExpiry,
		RiskFreeRate:  riskFreeRate,
		DividendYield: dividendYield,
		Type:          optionType,
	}
	if err := c.Validate(); err != nil {
		return Contract{}, err
	}
	return c, nil
}

func (c Contract) Validate() error {
	if !c.Type.valid() {
		return fmt.Errorf("%w: unknown option type %d", ErrInvalidInput, int(c.Type))
	}
	for name, v := range map[string]float64{
		"spot":           c.Spot,
		"strike":         c.Strike,
		"time to expiry": c.TimeToExpiry,
		"risk free rate": c.RiskFreeRate,
		"dividend yield": c.DividendYield,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidInput, name)
		}
	}
	if c.Spot <= 0 {
		return fmt.Errorf("%w: spot must be positive, got %v", ErrInvalidInput, c.Spot)
	}
	if c.Strike <= 0 {
		return fmt.Errorf("%w: strike must be positive, got %v", ErrInvalidInput, c.Strike)
	}
	if c.TimeToExpiry < 0 {
		return fmt.Errorf("%w: time to expiry must not be negative, got %v", ErrInvalidInput, c.TimeToExpiry)
	}
	return nil
}

func (c Contract) WithSpot(spot float64) Contract {
	c.Spot = spot
	return c
}

func (c Contract) WithStrike(strike float64) Contract {
	c.Strike = strike
	return c
}

func (c Contract) WithTime(timeToExpiry float64) Contract {
	c.TimeToExpiry = timeToExpiry
	return c
}

func validateVolatility(vol float64) error {
	if math.IsNaN(vol) || math.IsInf(vol, 0) || vol < 0 {
		return fmt.Errorf("%w: volatility must be a non-negative number, got %v", ErrInvalidInput, vol)
	}
	return nil
}

func (c Contract) dividendDiscount() float64 {
	return math.Exp(-c.DividendYield * c.TimeToExpiry)
}

func (c Contract) rateDiscount() float64 {
	return math.Exp(-c.RiskFreeRate * c.TimeToExpiry)
}

// forward is the dividend-adjusted forward price of the underlying at expiry.
func (c Contract) forward() float64 {
	return c.Spot * math.Exp((c.RiskFreeRate-c.DividendYield)*c.TimeToExpiry)
}
