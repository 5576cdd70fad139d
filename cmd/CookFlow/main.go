package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BTreeMap/CookFlow/internal/api"
	"github.com/BTreeMap/CookFlow/internal/flow"
	"github.com/BTreeMap/CookFlow/internal/genai"
	"github.com/BTreeMap/CookFlow/internal/retrieval"
	"github.com/BTreeMap/CookFlow/internal/store"
	"github.com/BTreeMap/CookFlow/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CookFlow state data
	DefaultStateDir = "/var/lib/cookflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "cookflow.db"
	// DefaultIndexFileName is the default SQLite recipe index filename
	DefaultIndexFileName = "corpus.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)

	// Start the service
	slog.Info("Bootstrapping CookFlow with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(storeOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("CookFlow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("CookFlow exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseDSN      string
	StateDir         string
	IndexDSN         string
	OpenAIKey        string
	Model            string
	ModelTimeout     string
	APIAddr          string
	SessionTTL       string
	SweepSchedule    string
	RetrievalTimeout string
	RetrievalK       string
	SafetyK          string
	RetryBudget      string
	DietTable        string
}

// Flags holds command line flag values
type Flags struct {
	stateDir         *string
	dbDSN            *string
	indexDSN         *string
	openaiKey        *string
	model            *string
	modelTimeout     *string
	apiAddr          *string
	sessionTTL       *string
	sweepSchedule    *string
	retrievalTimeout *string
	retrievalK       *string
	safetyK          *string
	retryBudget      *string
	dietTable        *string
}

// initializeLogger sets up structured logging. COOKFLOW_DEBUG raises the
// level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("COOKFLOW_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseDSN:      os.Getenv("COOKFLOW_DSN"),
		StateDir:         os.Getenv("COOKFLOW_STATE_DIR"),
		IndexDSN:         os.Getenv("COOKFLOW_INDEX_DSN"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		Model:            os.Getenv("COOKFLOW_MODEL"),
		ModelTimeout:     os.Getenv("COOKFLOW_MODEL_TIMEOUT"),
		APIAddr:          os.Getenv("COOKFLOW_API_ADDR"),
		SessionTTL:       os.Getenv("COOKFLOW_SESSION_TTL"),
		SweepSchedule:    os.Getenv("COOKFLOW_SWEEP_SCHEDULE"),
		RetrievalTimeout: os.Getenv("COOKFLOW_RETRIEVAL_TIMEOUT"),
		RetrievalK:       os.Getenv("COOKFLOW_RETRIEVAL_K"),
		SafetyK:          os.Getenv("COOKFLOW_SAFETY_K"),
		RetryBudget:      os.Getenv("COOKFLOW_RETRY_BUDGET"),
		DietTable:        os.Getenv("COOKFLOW_DIET_TABLE"),
	}

	// Fall back to the conventional DATABASE_URL when no CookFlow DSN is set
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("DATABASE_URL")
		if config.DatabaseDSN != "" {
			slog.Debug("Using DATABASE_URL as COOKFLOW_DSN", "dsn_set", true)
		}
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No COOKFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("COOKFLOW_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database DSN is provided, default to SQLite in the state directory
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	// The recipe index defaults to SQLite next to the session database
	if config.IndexDSN == "" {
		config.IndexDSN = filepath.Join(config.StateDir, DefaultIndexFileName)
		slog.Debug("No index DSN provided, defaulting to SQLite", "sqlite_path", config.IndexDSN)
	}

	slog.Debug("environment variables loaded",
		"COOKFLOW_DSN_SET", config.DatabaseDSN != "",
		"COOKFLOW_STATE_DIR", config.StateDir,
		"COOKFLOW_INDEX_DSN", config.IndexDSN,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"COOKFLOW_MODEL", config.Model,
		"COOKFLOW_API_ADDR", config.APIAddr,
		"COOKFLOW_SESSION_TTL", config.SessionTTL,
		"COOKFLOW_SWEEP_SCHEDULE", config.SweepSchedule,
		"COOKFLOW_DIET_TABLE", config.DietTable)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:         flag.String("state-dir", config.StateDir, "state directory for CookFlow data (overrides $COOKFLOW_STATE_DIR)"),
		dbDSN:            flag.String("db-dsn", config.DatabaseDSN, "database DSN for the session store (overrides $COOKFLOW_DSN or $DATABASE_URL)"),
		indexDSN:         flag.String("index-dsn", config.IndexDSN, "SQLite DSN for the recipe index, or 'memory' (overrides $COOKFLOW_INDEX_DSN)"),
		openaiKey:        flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		model:            flag.String("model", config.Model, "chat completion model name (overrides $COOKFLOW_MODEL)"),
		modelTimeout:     flag.String("model-timeout", config.ModelTimeout, "timeout per model call, e.g. 30s (overrides $COOKFLOW_MODEL_TIMEOUT)"),
		apiAddr:          flag.String("api-addr", config.APIAddr, "API server address (overrides $COOKFLOW_API_ADDR)"),
		sessionTTL:       flag.String("session-ttl", config.SessionTTL, "idle session lifetime, e.g. 30m (overrides $COOKFLOW_SESSION_TTL)"),
		sweepSchedule:    flag.String("sweep-schedule", config.SweepSchedule, "cron schedule for expired session sweeps (overrides $COOKFLOW_SWEEP_SCHEDULE)"),
		retrievalTimeout: flag.String("retrieval-timeout", config.RetrievalTimeout, "timeout per index search, e.g. 5s (overrides $COOKFLOW_RETRIEVAL_TIMEOUT)"),
		retrievalK:       flag.String("retrieval-k", config.RetrievalK, "recipe candidates fetched per request (overrides $COOKFLOW_RETRIEVAL_K)"),
		safetyK:          flag.String("safety-k", config.SafetyK, "safety rules fetched per question (overrides $COOKFLOW_SAFETY_K)"),
		retryBudget:      flag.String("retry-budget", config.RetryBudget, "regeneration attempts after a rejected draft (overrides $COOKFLOW_RETRY_BUDGET)"),
		dietTable:        flag.String("diet-table", config.DietTable, "path to a JSON diet table overriding the embedded default (overrides $COOKFLOW_DIET_TABLE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"indexDSN", *flags.indexDSN,
		"openaiKeySet", *flags.openaiKey != "",
		"model", *flags.model,
		"apiAddr", *flags.apiAddr,
		"sessionTTL", *flags.sessionTTL,
		"sweepSchedule", *flags.sweepSchedule)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseDSN && config.DatabaseDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	// Same for the index DSN
	if *flags.indexDSN == config.IndexDSN && config.IndexDSN == filepath.Join(config.StateDir, DefaultIndexFileName) && *flags.stateDir != config.StateDir {
		*flags.indexDSN = filepath.Join(*flags.stateDir, DefaultIndexFileName)
		slog.Debug("Updated indexDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	// Ensure state directory exists if we're using a file-based DSN
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
		slog.Debug("State directory created successfully", "state_dir", stateDir)
	}

	// The recipe index is SQLite unless the in-memory sentinel is used
	if *flags.indexDSN != "" && *flags.indexDSN != api.MemoryIndexDSN {
		indexDir := filepath.Dir(*flags.indexDSN)
		if err := os.MkdirAll(indexDir, 0755); err != nil {
			slog.Error("Failed to create index directory", "error", err, "index_dir", indexDir)
			return err
		}
	}
	return nil
}

// parseDurationSetting converts a raw duration string, rejecting values the
// modules could not honor.
func parseDurationSetting(name, raw string) (time.Duration, bool) {
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("Ignoring invalid duration setting", "setting", name, "value", raw, "error", err)
		return 0, false
	}
	return d, true
}

// parseCountSetting converts a raw positive integer string.
func parseCountSetting(name, raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		slog.Warn("Ignoring invalid count setting", "setting", name, "value", raw, "error", err)
		return 0, false
	}
	return n, true
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		switch store.DetectDSNType(*flags.dbDSN) {
		case "postgres":
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgres", "dsn_set", true)
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		case "redis":
			slog.Debug("Detected Redis DSN, configuring Redis store", "dsn_type", "redis", "dsn_set", true)
			storeOpts = append(storeOpts, store.WithRedisDSN(*flags.dbDSN))
		default:
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	if ttl, ok := parseDurationSetting("session TTL", *flags.sessionTTL); ok {
		storeOpts = append(storeOpts, store.WithSessionTTL(ttl))
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.model))
	}
	if d, ok := parseDurationSetting("model timeout", *flags.modelTimeout); ok {
		genaiOpts = append(genaiOpts, genai.WithTimeout(d))
	}
	return genaiOpts
}

// buildGateOptions constructs retrieval gate tuning options
func buildGateOptions(flags Flags) []retrieval.GateOption {
	var gateOpts []retrieval.GateOption
	if d, ok := parseDurationSetting("retrieval timeout", *flags.retrievalTimeout); ok {
		gateOpts = append(gateOpts, retrieval.WithSearchTimeout(d))
	}
	if k, ok := parseCountSetting("retrieval k", *flags.retrievalK); ok {
		gateOpts = append(gateOpts, retrieval.WithRecipeK(k))
	}
	if k, ok := parseCountSetting("safety k", *flags.safetyK); ok {
		gateOpts = append(gateOpts, retrieval.WithSafetyK(k))
	}
	return gateOpts
}

// buildFlowOptions constructs orchestrator tuning options
func buildFlowOptions(flags Flags) []flow.OrchestratorOption {
	var flowOpts []flow.OrchestratorOption
	if n, ok := parseCountSetting("retry budget", *flags.retryBudget); ok {
		flowOpts = append(flowOpts, flow.WithRetryBudget(n))
	}
	return flowOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.indexDSN != "" {
		apiOpts = append(apiOpts, api.WithIndexDSN(*flags.indexDSN))
	}
	if ttl, ok := parseDurationSetting("session TTL", *flags.sessionTTL); ok {
		apiOpts = append(apiOpts, api.WithSessionTTL(ttl))
	}
	if *flags.sweepSchedule != "" {
		apiOpts = append(apiOpts, api.WithSweepSchedule(*flags.sweepSchedule))
	}
	if *flags.dietTable != "" {
		apiOpts = append(apiOpts, api.WithDietTablePath(*flags.dietTable))
	}
	if gateOpts := buildGateOptions(flags); len(gateOpts) > 0 {
		apiOpts = append(apiOpts, api.WithGateOptions(gateOpts...))
	}
	if flowOpts := buildFlowOptions(flags); len(flowOpts) > 0 {
		apiOpts = append(apiOpts, api.WithFlowOptions(flowOpts...))
	}
	return apiOpts
}
