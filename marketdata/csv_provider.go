package marketdata

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"github.com/souvik131/options-analyser/analytics"
)

// ChainRow is one option quote in a chain CSV.
type ChainRow struct {
	Ticker       string  `csv:"ticker"`
	Expiry       string  `csv:"expiry"`
	Type         string  `csv:"type"`
	Strike       float64 `csv:"strike"`
	Bid          float64 `csv:"bid"`
	Ask          float64 `csv:"ask"`
	Last         float64 `csv:"last"`
	Volume       uint64  `csv:"volume"`
	OpenInterest uint64  `csv:"open_interest"`
}

// HistoryRow is one daily candle in a price-history CSV.
type HistoryRow struct {
	Ticker string  `csv:"ticker"`
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume uint64  `csv:"volume"`
}

type chainKey struct {
	ticker string
	expiry string
}

// CSVProvider serves chains and price history from CSV snapshots, for offline analysis.
// Spot is the last close in the history file.
type CSVProvider struct {
	chains  map[chainKey]*Chain
	history map[string][]Candle
}

func NewCSVProvider(chainPath, historyPath string) (*CSVProvider, error) {
	var chainRows []*ChainRow
	if err := unmarshalFile(chainPath, &chainRows); err != nil {
		return nil, err
	}
	var historyRows []*HistoryRow
	if err := unmarshalFile(historyPath, &historyRows); err != nil {
		return nil, err
	}

	p := &CSVProvider{chains: map[chainKey]*Chain{}, history: map[string][]Candle{}}
	for i, row := range chainRows {
		if err := p.addChainRow(row); err != nil {
			return nil, fmt.Errorf("%s row %d: %w", chainPath, i+2, err)
		}
	}
	for i, row := range historyRows {
		date, err := time.Parse(DateLayout, strings.TrimSpace(row.Date))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", historyPath, i+2, err)
		}
		ticker := normaliseTicker(row.Ticker)
		p.history[ticker] = append(p.history[ticker], Candle{
			Timestamp: date.UnixNano(),
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}
	for _, candles := range p.history {
		sort.SliceStable(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })
	}

	log.WithFields(log.Fields{"chains": len(p.chains), "tickers": len(p.history)}).Info("loaded csv market data")
	return p, nil
}

func unmarshalFile(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func normaliseTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

func (p *CSVProvider) addChainRow(row *ChainRow) error {
	typ, err := analytics.ParseOptionType(row.Type)
	if err != nil {
		return err
	}
	expiry := strings.TrimSpace(row.Expiry)
	if _, err := time.Parse(DateLayout, expiry); err != nil {
		return err
	}
	key := chainKey{ticker: normaliseTicker(row.Ticker), expiry: expiry}
	chain, ok := p.chains[key]
	if !ok {
		chain = &Chain{Ticker: key.ticker, Expiry: key.expiry}
		p.chains[key] = chain
	}
	q := Quote{
		Strike:       row.Strike,
		Bid:          row.Bid,
		Ask:          row.Ask,
		Last:         row.Last,
		Volume:       row.Volume,
		OpenInterest: row.OpenInterest,
	}
	if typ == analytics.Put {
		chain.Puts = append(chain.Puts, q)
	} else {
		chain.Calls = append(chain.Calls, q)
	}
	return nil
}

func (p *CSVProvider) Spot(_ context.Context, ticker string) (float64, error) {
	candles := p.history[normaliseTicker(ticker)]
	if len(candles) == 0 {
		return 0, fmt.Errorf("%w: spot for %s", ErrNotFound, ticker)
	}
	return candles[len(candles)-1].Close, nil
}

// History returns the candles within days of the latest one in the file, so a snapshot
// analyses the same way whenever it is replayed.
func (p *CSVProvider) History(_ context.Context, ticker string, days int) ([]Candle, error) {
	candles := p.history[normaliseTicker(ticker)]
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: history for %s", ErrNotFound, ticker)
	}
	cutoff := time.Unix(0, candles[len(candles)-1].Timestamp).AddDate(0, 0, -days).UnixNano()
	i := sort.Search(len(candles), func(i int) bool { return candles[i].Timestamp >= cutoff })
	return append([]Candle(nil), candles[i:]...), nil
}

func (p *CSVProvider) Expiries(_ context.Context, ticker string) ([]string, error) {
	ticker = normaliseTicker(ticker)
	var expiries []string
	for key := range p.chains {
		if key.ticker == ticker {
			expiries = append(expiries, key.expiry)
		}
	}
	if len(expiries) == 0 {
		return nil, fmt.Errorf("%w: expiries for %s", ErrNotFound, ticker)
	}
	sort.Strings(expiries)
	return expiries, nil
}

func (p *CSVProvider) Chain(_ context.Context, ticker, expiry string) (*Chain, error) {
	chain, ok := p.chains[chainKey{ticker: normaliseTicker(ticker), expiry: expiry}]
	if !ok {
		return nil, fmt.Errorf("%w: chain %s %s", ErrNotFound, ticker, expiry)
	}
	out := *chain
	out.Calls = append([]Quote(nil), chain.Calls...)
	out.Puts = append([]Quote(nil), chain.Puts...)
	return &out, nil
}

// WriteChainCSV exports a chain snapshot in the format NewCSVProvider reads.
func WriteChainCSV(w io.Writer, chain *Chain) error {
	rows := make([]*ChainRow, 0, len(chain.Calls)+len(chain.Puts))
	for _, side := range []analytics.OptionType{analytics.Call, analytics.Put} {
		for _, q := range chain.Side(side) {
			rows = append(rows, &ChainRow{
				Ticker:       chain.Ticker,
				Expiry:       chain.Expiry,
				Type:         side.String(),
				Strike:       q.Strike,
				Bid:          q.Bid,
				Ask:          q.Ask,
				Last:         q.Last,
				Volume:       q.Volume,
				OpenInterest: q.OpenInterest,
			})
		}
	}
	return gocsv.Marshal(&rows, w)
}

// WriteHistoryCSV exports daily candles in the format NewCSVProvider reads.
func WriteHistoryCSV(w io.Writer, ticker string, candles []Candle) error {
	rows := make([]*HistoryRow, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, &HistoryRow{
			Ticker: ticker,
			Date:   time.Unix(0, c.Timestamp).UTC().Format(DateLayout),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	return gocsv.Marshal(&rows, w)
}
