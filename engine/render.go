package engine

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/souvik131/options-analyser/analytics"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	return table
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// RenderGreeks writes greeks as a one-row table.
func RenderGreeks(w io.Writer, g analytics.Greeks) {
	table := newTable(w, "Delta", "Gamma", "Vega", "Theta", "Rho")
	table.Append([]string{
		fmt.Sprintf("%.4f", g.Delta),
		fmt.Sprintf("%.4f", g.Gamma),
		fmt.Sprintf("%.4f", g.Vega),
		fmt.Sprintf("%.4f", g.Theta),
		fmt.Sprintf("%.4f", g.Rho),
	})
	table.Render()
	if g.Degenerate {
		fmt.Fprintln(w, "At expiry or zero volatility: gamma, vega and theta are reported as zero.")
	}
}

// RenderReport writes the report as text tables for terminals and chat clients.
func RenderReport(w io.Writer, r *Report) {
	fmt.Fprintf(w, "%s (%s) %s %s, expiry %s\n\n", r.Company, r.Ticker, strings.ToUpper(r.Type.String()), fmt.Sprint(r.Strike), r.Expiry)

	summary := newTable(w, "Spot", "Hist. vol", "Implied vol", "Premium", "T (years)", "Breakeven", "P(beyond breakeven)")
	summary.Append([]string{
		fmt.Sprintf("%.2f", r.Spot),
		pct(r.HistoricalVol),
		pct(r.ImpliedVol),
		fmt.Sprintf("%.4f", r.Premium),
		fmt.Sprintf("%.4f", r.TimeToExpiry),
		fmt.Sprintf("%.2f", r.Breakeven),
		pct(r.BreakevenProbability),
	})
	summary.Render()
	fmt.Fprintln(w)

	RenderGreeks(w, r.Greeks)
	fmt.Fprintf(w, "\nA %s %s, currently %s.\n", r.Direction, r.Type, r.Moneyness)
	fmt.Fprintf(w, "A %+.2f move in the stock changes the value by about %+.2f; a %+.0f point move in volatility by about %+.2f.\n\n",
		r.Effects.SpotMove, r.Effects.SpotEffect, r.Effects.VolMove*100, r.Effects.VolEffect)

	chain := newTable(w, "Strike", "Mid", "Implied vol", "Model price", "Note")
	for _, row := range r.Chain {
		if row.Error != "" {
			chain.Append([]string{fmt.Sprint(row.Strike), fmt.Sprintf("%.4f", row.Mid), "", "", row.Error})
			continue
		}
		chain.Append([]string{
			fmt.Sprint(row.Strike),
			fmt.Sprintf("%.4f", row.Mid),
			pct(row.ImpliedVol),
			fmt.Sprintf("%.4f", row.ModelPrice),
			"",
		})
	}
	chain.Render()

	if len(r.Nearby) > 0 {
		fmt.Fprintln(w)
		nearby := newTable(w, "Strike", "Implied vol", "Delta", "Gamma", "Vega", "Theta", "Rho")
		for _, row := range r.Nearby {
			if row.Error != "" {
				nearby.Append([]string{fmt.Sprint(row.Strike), row.Error, "", "", "", "", ""})
				continue
			}
			g := row.Greeks
			nearby.Append([]string{
				fmt.Sprint(row.Strike),
				pct(row.ImpliedVol),
				fmt.Sprintf("%.4f", g.Delta),
				fmt.Sprintf("%.4f", g.Gamma),
				fmt.Sprintf("%.4f", g.Vega),
				fmt.Sprintf("%.4f", g.Theta),
				fmt.Sprintf("%.4f", g.Rho),
			})
		}
		nearby.Render()
	}
}

// RenderSweep writes a sweep as a table, one row per grid point.
func RenderSweep(w io.Writer, dim analytics.Dimension, points []analytics.Point) {
	table := newTable(w, strings.ToUpper(dim.String()[:1])+dim.String()[1:], "Price", "Delta", "Gamma", "Vega", "Theta", "Note")
	for _, p := range points {
		if p.Err != nil {
			table.Append([]string{fmt.Sprintf("%.4f", p.X), "", "", "", "", "", p.Err.Error()})
			continue
		}
		g := p.Greeks.Reported()
		table.Append([]string{
			fmt.Sprintf("%.4f", p.X),
			fmt.Sprintf("%.4f", p.Price),
			fmt.Sprintf("%.4f", g.Delta),
			fmt.Sprintf("%.4f", g.Gamma),
			fmt.Sprintf("%.4f", g.Vega),
			fmt.Sprintf("%.4f", g.Theta),
			"",
		})
	}
	table.Render()
}
