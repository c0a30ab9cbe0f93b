package tasks_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/evmarket/pipeline/config"
	"github.com/evmarket/pipeline/state"
	"github.com/evmarket/pipeline/tasks"
)

func applied(t *testing.T, update state.Update) state.State {
	t.Helper()
	return state.NewInitial(nil).Apply(update)
}

func TestMarketResearch_FallbackWithoutProvider(t *testing.T) {
	mr := tasks.NewMarketResearch(config.DefaultResearchConfig(), nil)

	update, err := mr.Process(context.Background(), state.NewInitial(nil))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	s := applied(t, update)
	for _, slot := range []string{
		state.SlotMarketData,
		state.SlotMarketTrends,
		state.SlotGovernmentPolicies,
	} {
		if _, found := s.Lookup(slot); !found {
			t.Errorf("slot %s not populated", slot)
		}
	}

	policies := s.Results[state.SlotGovernmentPolicies].(map[string]any)
	if policies["note"] == nil {
		t.Error("fallback data should be marked")
	}
	if len(s.Warnings) == 0 {
		t.Error("degraded run should warn")
	}
}

func TestMarketResearch_ProviderResults(t *testing.T) {
	search := func(_ context.Context, query string, maxResults int) ([]tasks.SearchResult, error) {
		return []tasks.SearchResult{
			{Title: "EV outlook", URL: "https://example.com", Content: "growth"},
		}, nil
	}
	mr := tasks.NewMarketResearch(config.DefaultResearchConfig(), search)

	update, err := mr.Process(context.Background(), state.NewInitial(nil))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	s := applied(t, update)
	if len(s.Warnings) != 0 {
		t.Errorf("healthy provider should not warn: %v", s.Warnings)
	}

	marketData := s.Results[state.SlotMarketData].(map[string]any)
	global := marketData["global_market"].(map[string]any)
	if global["results"] == nil {
		t.Error("provider results should be embedded")
	}
}

func TestMarketResearch_RetriesFlakes(t *testing.T) {
	calls := 0
	search := func(context.Context, string, int) ([]tasks.SearchResult, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("rate limited")
		}
		return []tasks.SearchResult{{Title: "ok"}}, nil
	}

	cfg := config.ResearchConfig{MaxResults: 5, MaxRetries: 3}
	mr := tasks.NewMarketResearch(cfg, search)

	update, err := mr.Process(context.Background(), state.NewInitial(nil))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	s := applied(t, update)
	if len(s.Warnings) != 0 {
		t.Errorf("a retried success should not warn, got %v", s.Warnings)
	}
}

func TestConsumerAnalysis(t *testing.T) {
	ca := tasks.NewConsumerAnalysis(config.DefaultResearchConfig(), nil)

	snapshot := state.NewInitial(nil).Apply(state.Update{
		state.SlotMarketTrends: map[string]any{"price_parity": "closing"},
	})

	update, err := ca.Process(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	s := applied(t, update)
	patterns := s.Results[state.SlotConsumerPatterns].(map[string]any)
	if patterns["purchase_drivers"] == nil || patterns["barriers"] == nil {
		t.Errorf("patterns incomplete: %v", patterns)
	}
	if patterns["outlook"] == nil {
		t.Error("price parity trend should shape the outlook")
	}
}

func TestCompanyAnalysis_FallbackList(t *testing.T) {
	cfg := config.DefaultCompanyConfig()
	cfg.MaxCompanies = 3
	ca := tasks.NewCompanyAnalysis(cfg, nil)

	update, err := ca.Process(context.Background(), state.NewInitial(nil))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	s := applied(t, update)
	analysis := s.Results[state.SlotCompanyAnalysis].(map[string]any)
	if analysis["company_count"] != 3 {
		t.Errorf("company_count = %v, want 3", analysis["company_count"])
	}

	companies := analysis["companies"].(map[string]any)
	if companies["BYD"] == nil {
		t.Errorf("companies = %v, want the head of the target list", companies)
	}

	techData := s.Results[state.SlotCompanyTechData].(map[string]any)
	if len(techData) != 3 {
		t.Errorf("tech data for %d companies, want 3", len(techData))
	}
}

func TestCompanyAnalysis_DynamicDiscovery(t *testing.T) {
	search := func(_ context.Context, _ string, maxResults int) ([]tasks.SearchResult, error) {
		out := make([]tasks.SearchResult, maxResults)
		for i := range out {
			out[i] = tasks.SearchResult{Title: fmt.Sprintf("Maker%d", i+1)}
		}
		return out, nil
	}

	cfg := config.DefaultCompanyConfig()
	cfg.MaxCompanies = 2
	ca := tasks.NewCompanyAnalysis(cfg, search)

	update, err := ca.Process(context.Background(), state.NewInitial(nil))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	s := applied(t, update)
	companies := s.Results[state.SlotCompanyAnalysis].(map[string]any)["companies"].(map[string]any)
	if companies["Maker1"] == nil {
		t.Errorf("companies = %v, want discovered makers", companies)
	}
	if len(s.Warnings) != 0 {
		t.Errorf("dynamic path should not warn: %v", s.Warnings)
	}
}

func TestTechAnalysis(t *testing.T) {
	ta := tasks.NewTechAnalysis(config.DefaultCompanyConfig())

	t.Run("missing input fails", func(t *testing.T) {
		if _, err := ta.Process(context.Background(), state.NewInitial(nil)); err == nil {
			t.Error("missing company_tech_data should fail")
		}
	})

	t.Run("builds trends", func(t *testing.T) {
		snapshot := state.NewInitial(nil).Apply(state.Update{
			state.SlotCompanyTechData: map[string]any{
				"BYD": map[string]any{"battery": "blade LFP"},
			},
		})

		update, err := ta.Process(context.Background(), snapshot)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}

		s := applied(t, update)
		trends := s.Results[state.SlotTechTrends].(map[string]any)
		battery := trends["battery"].(map[string]any)
		byCompany := battery["by_company"].(map[string]any)
		if byCompany["BYD"] != "blade LFP" {
			t.Errorf("by_company = %v", byCompany)
		}
		if trends["roadmap"] == nil {
			t.Error("roadmap missing")
		}
	})
}

func TestStockAnalysis_FallbackQuotes(t *testing.T) {
	sa := tasks.NewStockAnalysis(config.DefaultStockConfig(), nil)

	update, err := sa.Process(context.Background(), state.NewInitial(nil))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	s := applied(t, update)
	analysis := s.Results[state.SlotStockAnalysis].(map[string]any)
	perTicker := analysis["tickers"].(map[string]any)
	if len(perTicker) != len(config.DefaultStockConfig().Tickers) {
		t.Errorf("tickers = %v", perTicker)
	}

	tsla := perTicker["TSLA"].(map[string]any)
	if tsla["company"] != "Tesla" {
		t.Errorf("TSLA entry = %v", tsla)
	}
	if analysis["note"] == nil {
		t.Error("fallback data should be marked")
	}
}

func TestStockAnalysis_ProviderFailureDegrades(t *testing.T) {
	quotes := func(_ context.Context, ticker string) (tasks.Quote, error) {
		if ticker == "TSLA" {
			return tasks.Quote{Ticker: ticker, Price: 250, ChangePct: 2.0}, nil
		}
		return tasks.Quote{}, errors.New("feed timeout")
	}
	sa := tasks.NewStockAnalysis(config.DefaultStockConfig(), quotes)

	update, err := sa.Process(context.Background(), state.NewInitial(nil))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	s := applied(t, update)
	if len(s.Warnings) == 0 {
		t.Error("per-ticker failures should warn")
	}
	perTicker := s.Results[state.SlotStockAnalysis].(map[string]any)["tickers"].(map[string]any)
	if len(perTicker) != len(config.DefaultStockConfig().Tickers) {
		t.Error("failed tickers should fall back, not disappear")
	}
}

func TestStockAnalysis_CrossReferencesCompanies(t *testing.T) {
	ca := tasks.NewCompanyAnalysis(config.DefaultCompanyConfig(), nil)
	companyUpdate, err := ca.Process(context.Background(), state.NewInitial(nil))
	if err != nil {
		t.Fatalf("company Process: %v", err)
	}
	snapshot := applied(t, companyUpdate)

	sa := tasks.NewStockAnalysis(config.DefaultStockConfig(), nil)
	update, err := sa.Process(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("stock Process: %v", err)
	}

	analysis := update[state.SlotStockAnalysis].(map[string]any)
	covered, ok := analysis["companies_covered"].([]string)
	if !ok {
		t.Fatalf("companies_covered = %v", analysis["companies_covered"])
	}
	want := []string{"BYD", "NIO", "Tesla"}
	if !slices.Equal(covered, want) {
		t.Errorf("companies_covered = %v, want %v", covered, want)
	}

	// Without the company slot the summary omits the cross-reference.
	update, err = sa.Process(context.Background(), state.NewInitial(nil))
	if err != nil {
		t.Fatalf("stock Process: %v", err)
	}
	analysis = update[state.SlotStockAnalysis].(map[string]any)
	if _, present := analysis["companies_covered"]; present {
		t.Error("cross-reference should need company_analysis")
	}
}

func TestChartGeneration(t *testing.T) {
	cfg := config.ChartConfig{OutputDir: t.TempDir(), Formats: []string{"html"}}
	cg := tasks.NewChartGeneration(cfg)

	t.Run("missing input fails", func(t *testing.T) {
		if _, err := cg.Process(context.Background(), state.NewInitial(nil)); err == nil {
			t.Error("missing company_analysis should fail")
		}
	})

	t.Run("renders charts and sets flag", func(t *testing.T) {
		snapshot := state.NewInitial(nil).Apply(state.Update{
			state.SlotCompanyAnalysis: map[string]any{
				"companies": map[string]any{
					"BYD":   map[string]any{"ev_sales_2024": 3000000},
					"Tesla": map[string]any{"ev_sales_2024": 1800000},
				},
			},
			state.SlotStockAnalysis: map[string]any{
				"tickers": map[string]any{
					"TSLA": map[string]any{"change_pct": 1.2},
				},
			},
		})

		update, err := cg.Process(context.Background(), snapshot)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}

		s := applied(t, update)
		if !s.ChartsGenerated {
			t.Error("charts_generated flag not set")
		}

		files := s.Results[state.SlotChartFiles].([]any)
		if len(files) != 3 {
			t.Fatalf("chart files = %v, want 3", files)
		}
		for _, f := range files {
			data, err := os.ReadFile(f.(string))
			if err != nil {
				t.Fatalf("chart file missing: %v", err)
			}
			if !strings.Contains(string(data), "<html>") {
				t.Errorf("chart file %s is not HTML", f)
			}
		}
	})
}

func TestReportGeneration(t *testing.T) {
	dir := t.TempDir()
	cfg := config.ReportConfig{OutputDir: dir, Formats: []string{"markdown", "json"}}
	rg := tasks.NewReportGeneration(cfg)

	snapshot := state.NewInitial(nil).Apply(state.Update{
		state.SlotMarketData:      map[string]any{"global_market": "big"},
		state.SlotStockAnalysis:   map[string]any{"tickers": map[string]any{}},
		state.FlagChartsGenerated: true,
	})

	update, err := rg.Process(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	s := applied(t, update)
	if !s.ReportGenerated {
		t.Error("report_generated flag not set")
	}
	if _, found := s.Lookup(state.SlotFinalReport); !found {
		t.Error("final_report not populated")
	}

	paths := s.Results[state.SlotReportPaths].([]any)
	if len(paths) != 2 {
		t.Fatalf("report paths = %v, want markdown and json", paths)
	}

	md, err := os.ReadFile(filepath.Join(dir, snapshot.WorkflowID+".md"))
	if err != nil {
		t.Fatalf("markdown report missing: %v", err)
	}
	if !strings.Contains(string(md), "EV Market Analysis Report") {
		t.Error("markdown report missing title")
	}
	if !strings.Contains(string(md), "market data") {
		t.Errorf("markdown report missing section: %s", md)
	}
}

func TestReportGeneration_UnsupportedFormatWarns(t *testing.T) {
	cfg := config.ReportConfig{OutputDir: t.TempDir(), Formats: []string{"pdf"}}
	rg := tasks.NewReportGeneration(cfg)

	update, err := rg.Process(context.Background(), state.NewInitial(nil))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	s := applied(t, update)
	if len(s.Warnings) == 0 {
		t.Error("unsupported format should warn")
	}
	if paths, _ := s.Results[state.SlotReportPaths].([]any); len(paths) != 0 {
		t.Errorf("paths = %v, want none", paths)
	}
}
