package tasks

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/evmarket/pipeline/config"
	"github.com/evmarket/pipeline/state"
)

// ChartGeneration renders the analysis results into chart specifications
// and writes one standalone HTML file per chart. It requires every
// analysis slot, owns the charts, chart_files, and dashboard slots, and
// sets the charts_generated flag.
type ChartGeneration struct {
	cfg config.ChartConfig
}

func NewChartGeneration(cfg config.ChartConfig) *ChartGeneration {
	return &ChartGeneration{cfg: cfg}
}

func (c *ChartGeneration) Name() string { return "chart_generation" }

func (c *ChartGeneration) Process(_ context.Context, snapshot state.State) (state.Update, error) {
	companyAnalysis, found := snapshot.Lookup(state.SlotCompanyAnalysis)
	if !found {
		return nil, fmt.Errorf("company_analysis not available")
	}

	charts := []map[string]any{
		marketGrowthChart(),
		marketShareChart(companyAnalysis),
		stockPerformanceChart(snapshot),
	}

	var (
		files    []any
		warnings []string
	)
	if renderHTML(c.cfg.Formats) {
		for _, chart := range charts {
			path, err := c.writeChartFile(chart)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("chart_generation: %v", err))
				continue
			}
			files = append(files, path)
		}
	}

	chartIndex := make(map[string]any, len(charts))
	for _, chart := range charts {
		chartIndex[chart["id"].(string)] = chart
	}

	update := state.Update{
		state.SlotCharts:     chartIndex,
		state.SlotChartFiles: files,
		state.SlotDashboard: map[string]any{
			"title":       "EV Market Analysis Dashboard",
			"chart_count": len(charts),
			"charts":      chartIDs(charts),
		},
		state.FlagChartsGenerated: true,
		state.FieldMessages: state.TaskMessage(c.Name(),
			fmt.Sprintf("generated %d charts", len(charts))),
	}
	if len(warnings) > 0 {
		update[state.FieldWarnings] = warnings
	}
	return update, nil
}

func renderHTML(formats []string) bool {
	for _, f := range formats {
		if strings.EqualFold(f, "html") {
			return true
		}
	}
	return false
}

var chartPage = template.Must(template.New("chart").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Insights}}</p>
<pre id="spec">{{.Spec}}</pre>
</body>
</html>
`))

func (c *ChartGeneration) writeChartFile(chart map[string]any) (string, error) {
	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("chart dir: %w", err)
	}

	id := chart["id"].(string)
	path := filepath.Join(c.cfg.OutputDir, id+".html")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("chart %s: %w", id, err)
	}
	defer f.Close()

	err = chartPage.Execute(f, map[string]any{
		"Title":    chart["title"],
		"Insights": chart["insights"],
		"Spec":     fmt.Sprintf("%v", chart["data"]),
	})
	if err != nil {
		return "", fmt.Errorf("chart %s: %w", id, err)
	}
	return path, nil
}

func chartIDs(charts []map[string]any) []any {
	ids := make([]any, len(charts))
	for i, chart := range charts {
		ids[i] = chart["id"]
	}
	return ids
}

func marketGrowthChart() map[string]any {
	return map[string]any{
		"id":    "market_growth_chart",
		"type":  "line",
		"title": "Global EV Market Growth Forecast",
		"data": map[string]any{
			"x": []any{"2020", "2021", "2022", "2023", "2024", "2025F", "2026F", "2027F", "2028F", "2029F", "2030F"},
			"y": []any{140, 220, 350, 500, 650, 800, 1000, 1250, 1500, 1800, 2200},
		},
		"insights": "sustained growth toward 2030 at roughly 25% CAGR",
	}
}

func marketShareChart(companyAnalysis any) map[string]any {
	labels := []any{}
	values := []any{}

	if m, ok := companyAnalysis.(map[string]any); ok {
		if companies, ok := m["companies"].(map[string]any); ok {
			for company, entry := range companies {
				profile, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				if sales, ok := profile["ev_sales_2024"]; ok {
					labels = append(labels, company)
					values = append(values, sales)
				}
			}
		}
	}

	return map[string]any{
		"id":    "market_share_chart",
		"type":  "pie",
		"title": "EV Market Share by Company",
		"data": map[string]any{
			"labels": labels,
			"values": values,
		},
		"insights": "a handful of makers hold most of the volume",
	}
}

func stockPerformanceChart(snapshot state.State) map[string]any {
	tickers := []any{}
	changes := []any{}

	if raw, found := snapshot.Lookup(state.SlotStockAnalysis); found {
		if analysis, ok := raw.(map[string]any); ok {
			if perTicker, ok := analysis["tickers"].(map[string]any); ok {
				for ticker, entry := range perTicker {
					quote, ok := entry.(map[string]any)
					if !ok {
						continue
					}
					tickers = append(tickers, ticker)
					changes = append(changes, quote["change_pct"])
				}
			}
		}
	}

	return map[string]any{
		"id":    "stock_performance_chart",
		"type":  "bar",
		"title": "EV Maker Stock Performance",
		"data": map[string]any{
			"labels": tickers,
			"values": changes,
		},
		"insights": "daily moves diverge between volume leaders and startups",
	}
}
