package config

// TasksConfig groups the per-collaborator settings.
type TasksConfig struct {
	Model    ModelConfig    `json:"model"`
	Research ResearchConfig `json:"research"`
	Company  CompanyConfig  `json:"company"`
	Stock    StockConfig    `json:"stock"`
	Charts   ChartConfig    `json:"charts"`
	Report   ReportConfig   `json:"report"`
}

func DefaultTasksConfig() TasksConfig {
	return TasksConfig{
		Model:    DefaultModelConfig(),
		Research: DefaultResearchConfig(),
		Company:  DefaultCompanyConfig(),
		Stock:    DefaultStockConfig(),
		Charts:   DefaultChartConfig(),
		Report:   DefaultReportConfig(),
	}
}

func (c *TasksConfig) Merge(source *TasksConfig) {
	c.Model.Merge(&source.Model)
	c.Research.Merge(&source.Research)
	c.Company.Merge(&source.Company)
	c.Stock.Merge(&source.Stock)
	c.Charts.Merge(&source.Charts)
	c.Report.Merge(&source.Report)
}

// ModelConfig selects the analysis model tier for tasks that summarize
// through a language model. With no APIKey every task degrades to its
// fallback data path instead of aborting the run.
type ModelConfig struct {
	Tier   string `json:"tier"`
	APIKey string `json:"api_key"`
}

func DefaultModelConfig() ModelConfig {
	return ModelConfig{Tier: "standard"}
}

func (c *ModelConfig) Merge(source *ModelConfig) {
	if source.Tier != "" {
		c.Tier = source.Tier
	}

	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
}

// ResearchConfig tunes the market research and consumer analysis tasks.
type ResearchConfig struct {
	// MaxResults caps results taken per search query.
	MaxResults int `json:"max_results"`

	// MaxRetries bounds retries inside the task for flaky providers.
	MaxRetries int `json:"max_retries"`
}

func DefaultResearchConfig() ResearchConfig {
	return ResearchConfig{
		MaxResults: 5,
		MaxRetries: 3,
	}
}

func (c *ResearchConfig) Merge(source *ResearchConfig) {
	if source.MaxResults > 0 {
		c.MaxResults = source.MaxResults
	}

	if source.MaxRetries > 0 {
		c.MaxRetries = source.MaxRetries
	}
}

// CompanyConfig tunes the company and tech analysis tasks.
type CompanyConfig struct {
	// MaxCompanies limits how many makers are analyzed in depth.
	MaxCompanies int `json:"max_companies"`

	// TargetCompanies is the fallback maker list when dynamic discovery
	// is unavailable.
	TargetCompanies []string `json:"target_companies"`
}

func DefaultCompanyConfig() CompanyConfig {
	return CompanyConfig{
		MaxCompanies: 10,
		TargetCompanies: []string{
			"BYD", "Tesla", "Volkswagen", "Geely", "Hyundai",
			"GM", "Ford", "Stellantis", "Renault", "NIO",
		},
	}
}

func (c *CompanyConfig) Merge(source *CompanyConfig) {
	if source.MaxCompanies > 0 {
		c.MaxCompanies = source.MaxCompanies
	}

	if len(source.TargetCompanies) > 0 {
		c.TargetCompanies = source.TargetCompanies
	}
}

// StockConfig tunes the stock analysis task.
type StockConfig struct {
	// Tickers maps ticker symbol to company name.
	Tickers map[string]string `json:"tickers"`

	// RealTime prefers live quotes over the cached daily series.
	RealTime bool `json:"real_time"`
}

func DefaultStockConfig() StockConfig {
	return StockConfig{
		Tickers: map[string]string{
			"TSLA": "Tesla",
			"BYD":  "BYD",
			"RIVN": "Rivian",
			"LCID": "Lucid",
			"NIO":  "NIO",
		},
	}
}

func (c *StockConfig) Merge(source *StockConfig) {
	if len(source.Tickers) > 0 {
		c.Tickers = source.Tickers
	}

	if source.RealTime {
		c.RealTime = source.RealTime
	}
}

// ChartConfig tunes chart generation.
type ChartConfig struct {
	// OutputDir receives rendered chart files.
	OutputDir string `json:"output_dir"`

	// Formats lists the file formats to render.
	Formats []string `json:"formats"`
}

func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		OutputDir: "output/charts",
		Formats:   []string{"html"},
	}
}

func (c *ChartConfig) Merge(source *ChartConfig) {
	if source.OutputDir != "" {
		c.OutputDir = source.OutputDir
	}

	if len(source.Formats) > 0 {
		c.Formats = source.Formats
	}
}

// ReportConfig tunes final report generation.
type ReportConfig struct {
	// OutputDir receives the report files.
	OutputDir string `json:"output_dir"`

	// Formats lists report output formats (markdown, json).
	Formats []string `json:"formats"`
}

func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		OutputDir: "output/reports",
		Formats:   []string{"markdown", "json"},
	}
}

func (c *ReportConfig) Merge(source *ReportConfig) {
	if source.OutputDir != "" {
		c.OutputDir = source.OutputDir
	}

	if len(source.Formats) > 0 {
		c.Formats = source.Formats
	}
}
