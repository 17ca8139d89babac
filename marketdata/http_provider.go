package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const (
	DefaultBaseURL   = "https://query2.finance.yahoo.com"
	DefaultTimeout   = 10 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
)

// HTTPProvider reads quotes from a Yahoo-Finance-compatible JSON API.
type HTTPProvider struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string

	client *fasthttp.Client
	now    func() time.Time
}

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPProvider{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Timeout:   timeout,
		UserAgent: defaultUserAgent,
		client: &fasthttp.Client{
			Name:                     "options-analyser",
			MaxIdleConnDuration:      30 * time.Second,
			NoDefaultUserAgentHeader: true,
		},
		now: time.Now,
	}
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	ExchangeName       string  `json:"exchangeName"`
	LongName           string  `json:"longName"`
	ShortName          string  `json:"shortName"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
}

type chartResponsePayload struct {
	Chart struct {
		Result []struct {
			Meta       chartMeta `json:"meta"`
			Timestamp  []int64   `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

type optionContract struct {
	Strike       float64 `json:"strike"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	LastPrice    float64 `json:"lastPrice"`
	Volume       float64 `json:"volume"`
	OpenInterest float64 `json:"openInterest"`
}

type optionsResponsePayload struct {
	OptionChain struct {
		Result []struct {
			UnderlyingSymbol string  `json:"underlyingSymbol"`
			ExpirationDates  []int64 `json:"expirationDates"`
			Options          []struct {
				ExpirationDate int64            `json:"expirationDate"`
				Calls          []optionContract `json:"calls"`
				Puts           []optionContract `json:"puts"`
			} `json:"options"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"optionChain"`
}

func (p *HTTPProvider) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	uri := p.BaseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", p.UserAgent)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(p.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	err := p.client.DoDeadline(req, resp, deadline)
	fields := log.Fields{"path": path, "elapsed": time.Since(start)}
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("market data request failed")
		return fmt.Errorf("%w: GET %s: %v", ErrUnavailable, path, err)
	}
	code := resp.StatusCode()
	log.WithFields(fields).WithField("status", code).Debug("market data request")

	switch {
	case code == fasthttp.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case code != fasthttp.StatusOK:
		return fmt.Errorf("%w: GET %s: status %d", ErrUnavailable, path, code)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (p *HTTPProvider) chart(ctx context.Context, ticker string, query url.Values) (*chartResponsePayload, error) {
	var respData chartResponsePayload
	if err := p.get(ctx, "/v8/finance/chart/"+url.PathEscape(ticker), query, &respData); err != nil {
		return nil, fmt.Errorf("chart %s: %w", ticker, err)
	}
	if e := respData.Chart.Error; e != nil {
		return nil, fmt.Errorf("%w: chart %s: %s: %s", ErrNotFound, ticker, e.Code, e.Description)
	}
	if len(respData.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: chart %s", ErrNotFound, ticker)
	}
	return &respData, nil
}

func (p *HTTPProvider) Spot(ctx context.Context, ticker string) (float64, error) {
	respData, err := p.chart(ctx, ticker, url.Values{"range": {"1d"}, "interval": {"1d"}})
	if err != nil {
		return 0, err
	}
	result := respData.Chart.Result[0]
	if result.Meta.RegularMarketPrice > 0 {
		return result.Meta.RegularMarketPrice, nil
	}
	if quotes := result.Indicators.Quote; len(quotes) > 0 {
		for i := len(quotes[0].Close) - 1; i >= 0; i-- {
			if c := quotes[0].Close[i]; c != nil && *c > 0 {
				return *c, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: no price for %s", ErrNotFound, ticker)
}

func (p *HTTPProvider) History(ctx context.Context, ticker string, days int) ([]Candle, error) {
	end := p.now()
	start := end.AddDate(0, 0, -days)
	respData, err := p.chart(ctx, ticker, url.Values{
		"period1":  {strconv.FormatInt(start.Unix(), 10)},
		"period2":  {strconv.FormatInt(end.Unix(), 10)},
		"interval": {"1d"},
	})
	if err != nil {
		return nil, err
	}

	result := respData.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: no history for %s", ErrNotFound, ticker)
	}
	q := result.Indicators.Quote[0]
	value := func(series []*float64, i int) float64 {
		if i < len(series) && series[i] != nil {
			return *series[i]
		}
		return 0
	}

	candles := make([]Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := Candle{
			Timestamp: time.Unix(ts, 0).UnixNano(),
			Open:      value(q.Open, i),
			High:      value(q.High, i),
			Low:       value(q.Low, i),
			Close:     value(q.Close, i),
			Volume:    uint64(value(q.Volume, i)),
		}
		// the feed leaves nulls for halted sessions
		if c.Close <= 0 {
			continue
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// Profile names the company behind ticker from the chart metadata.
func (p *HTTPProvider) Profile(ctx context.Context, ticker string) (*Profile, error) {
	respData, err := p.chart(ctx, ticker, url.Values{"range": {"1d"}, "interval": {"1d"}})
	if err != nil {
		return nil, err
	}
	meta := respData.Chart.Result[0].Meta
	name := meta.LongName
	if name == "" {
		name = meta.ShortName
	}
	if name == "" {
		name = ticker
	}
	return &Profile{Ticker: ticker, Name: name, Exchange: meta.ExchangeName, Currency: meta.Currency}, nil
}

func (p *HTTPProvider) options(ctx context.Context, ticker string, query url.Values) (*optionsResponsePayload, error) {
	var respData optionsResponsePayload
	if err := p.get(ctx, "/v7/finance/options/"+url.PathEscape(ticker), query, &respData); err != nil {
		return nil, fmt.Errorf("options %s: %w", ticker, err)
	}
	if e := respData.OptionChain.Error; e != nil {
		return nil, fmt.Errorf("%w: options %s: %s: %s", ErrNotFound, ticker, e.Code, e.Description)
	}
	if len(respData.OptionChain.Result) == 0 {
		return nil, fmt.Errorf("%w: options %s", ErrNotFound, ticker)
	}
	return &respData, nil
}

func (p *HTTPProvider) Expiries(ctx context.Context, ticker string) ([]string, error) {
	respData, err := p.options(ctx, ticker, nil)
	if err != nil {
		return nil, err
	}
	dates := respData.OptionChain.Result[0].ExpirationDates
	expiries := make([]string, 0, len(dates))
	for _, d := range dates {
		expiries = append(expiries, time.Unix(d, 0).UTC().Format(DateLayout))
	}
	return expiries, nil
}

func (p *HTTPProvider) Chain(ctx context.Context, ticker, expiry string) (*Chain, error) {
	exp, err := time.Parse(DateLayout, expiry)
	if err != nil {
		return nil, fmt.Errorf("expiry %q: %w", expiry, err)
	}
	respData, err := p.options(ctx, ticker, url.Values{"date": {strconv.FormatInt(exp.Unix(), 10)}})
	if err != nil {
		return nil, err
	}
	result := respData.OptionChain.Result[0]
	if len(result.Options) == 0 {
		return nil, fmt.Errorf("%w: no chain for %s %s", ErrNotFound, ticker, expiry)
	}

	chain := &Chain{Ticker: ticker, Expiry: expiry}
	for _, o := range result.Options[0].Calls {
		chain.Calls = append(chain.Calls, o.quote())
	}
	for _, o := range result.Options[0].Puts {
		chain.Puts = append(chain.Puts, o.quote())
	}
	return chain, nil
}

func (o optionContract) quote() Quote {
	return Quote{
		Strike:       o.Strike,
		Bid:          o.Bid,
		Ask:          o.Ask,
		Last:         o.LastPrice,
		Volume:       uint64(o.Volume),
		OpenInterest: uint64(o.OpenInterest),
	}
}
