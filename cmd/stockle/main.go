// Package main provides the CLI entrypoint for stockle.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/verte-zerg/stockle/internal/api"
	"github.com/verte-zerg/stockle/internal/config"
	"github.com/verte-zerg/stockle/internal/game"
	"github.com/verte-zerg/stockle/internal/logging"
	"github.com/verte-zerg/stockle/internal/model"
	"github.com/verte-zerg/stockle/internal/persist"
	"github.com/verte-zerg/stockle/internal/stats"
	"github.com/verte-zerg/stockle/internal/statsclient"
	"github.com/verte-zerg/stockle/internal/statsui"
	"github.com/verte-zerg/stockle/internal/stocklist"
	"github.com/verte-zerg/stockle/internal/store"
	"github.com/verte-zerg/stockle/internal/tui"
)

const stocksRetryWindow = 5 * time.Second

var (
	apiURL       string
	apiTimeout   time.Duration
	apiRPS       float64
	storeBackend string
	storePath    string
	redisAddr    string
	redisDB      int
	logLevel     string
	logFile      string
	timezone     string

	statsRange string
	statsPlain bool

	stocksSector   string
	stocksIndustry string
	stocksSearch   string
	stocksFilters  bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "stockle",
		Short:         "Guess the daily stock in six tries",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	defaults := config.Defaults()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&apiURL, "api-url", defaults.APIURL, "game service base URL")
	flags.DurationVar(&apiTimeout, "timeout", defaults.APITimeout, "per-request timeout")
	flags.Float64Var(&apiRPS, "rps", defaults.RPS, "maximum requests per second")
	flags.StringVar(&storeBackend, "store", defaults.StoreBackend, "local store backend (sqlite or redis)")
	flags.StringVar(&storePath, "db", defaults.StorePath, "SQLite database path")
	flags.StringVar(&redisAddr, "redis-addr", defaults.RedisAddr, "Redis address")
	flags.IntVar(&redisDB, "redis-db", defaults.RedisDB, "Redis database number")
	flags.StringVar(&logLevel, "log-level", defaults.LogLevel, "log level")
	flags.StringVar(&logFile, "log-file", defaults.LogFile, "log file path (empty disables logging)")
	flags.StringVar(&timezone, "timezone", defaults.Timezone, "timezone that decides the calendar day")

	rootCmd.AddCommand(newShareCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newStocksCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newResetCmd())

	return rootCmd
}

// app holds the collaborators shared by the commands.
type app struct {
	settings config.Settings
	log      *zap.Logger
	kv       store.KV
	api      *api.Client
	today    func() string
	sessions *persist.Sessions
	records  *persist.StatsRecords
}

func openApp(cmd *cobra.Command) (*app, error) {
	settings, err := resolveSettings(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(logging.Config{Level: settings.LogLevel, OutputPath: settings.LogFile})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	loc, err := settings.Location()
	if err != nil {
		return nil, err
	}
	today := func() string { return model.DayKey(time.Now().In(loc)) }

	ctx := cmd.Context()
	kv, err := openStore(ctx, settings)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	playerID, err := persist.PlayerID(ctx, kv)
	if err != nil {
		closeStore(kv)
		return nil, err
	}
	client, err := api.New(api.Options{
		BaseURL:        settings.APIURL,
		Timeout:        settings.APITimeout,
		RequestsPerSec: settings.RPS,
		PlayerID:       playerID,
		Logger:         log,
	})
	if err != nil {
		closeStore(kv)
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}
	log.Debug("app ready",
		zap.String("store", settings.StoreBackend),
		zap.String("api", settings.APIURL),
		zap.String("day", today()),
	)
	return &app{
		settings: settings,
		log:      log,
		kv:       kv,
		api:      client,
		today:    today,
		sessions: persist.NewSessions(kv, today, log),
		records:  persist.NewStatsRecords(kv, log),
	}, nil
}

func (a *app) Close() {
	closeStore(a.kv)
	if err := a.log.Sync(); err != nil {
		// Syncing a file-backed logger can fail on some platforms.
		_ = err
	}
}

func (a *app) statsClient() *statsclient.Client {
	return statsclient.New(a.api, a.records, a.today, a.log)
}

func (a *app) controller() *game.Controller {
	return game.New(game.Options{
		Service:  a.api,
		Sessions: a.sessions,
		Stats:    a.statsClient(),
		Today:    a.today,
		Logger:   a.log,
	})
}

func (a *app) stockLoader() stocklist.Loader {
	return stocklist.Loader{
		Source:     a.api,
		CachePath:  config.DefaultStocksCachePath(),
		MaxElapsed: stocksRetryWindow,
		Logger:     a.log,
	}
}

func openStore(ctx context.Context, settings config.Settings) (store.KV, error) {
	switch settings.StoreBackend {
	case config.BackendRedis:
		rs, err := store.NewRedisStore(ctx, &redis.Options{Addr: settings.RedisAddr, DB: settings.RedisDB})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return rs, nil
	default:
		st, err := store.Open(settings.StorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		return st, nil
	}
}

func closeStore(kv store.KV) {
	if cerr := kv.Close(); cerr != nil {
		logErrf("failed to close store: %v\n", cerr)
	}
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	stocks, origin := a.stockLoader().Load(ctx)
	a.log.Info("stock list loaded", zap.String("origin", string(origin)), zap.Int("count", len(stocks)))

	ctrl := a.controller()
	defer ctrl.Close()

	m := tui.NewModel(ctx, tui.Options{Game: ctrl, Stocks: stocks, Logger: a.log})
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newShareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share",
		Short: "Print today's share text",
		Args:  cobra.NoArgs,
		RunE:  runShareCmd,
	}
}

func runShareCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctrl := a.controller()
	defer ctrl.Close()
	res := ctrl.LoadOrInit(cmd.Context())
	if !res.Restored {
		return fmt.Errorf("no game played today (%s)", a.today())
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), ctrl.ShareText()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show today's stats and the answer's price chart",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsRange, "range", string(stats.Range5Y), "chart range (1W, 1M, 1Y, 5Y)")
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a plain report instead of the viewer")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	rng, err := stats.ParseRange(statsRange)
	if err != nil {
		return fmt.Errorf("invalid --range value: %w", err)
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	session, _ := a.sessions.Load(cmd.Context())
	if session.Date == "" {
		session = model.NewSessionState(a.today())
	}
	reader := a.statsClient()

	if statsPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		rep := stats.BuildReport(cmd.Context(), reader, a.api, rng)
		return printReport(cmd, rep)
	}

	m := statsui.NewModel(reader, a.api, session, rng)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func printReport(cmd *cobra.Command, rep stats.Report) error {
	out := cmd.OutOrStdout()
	switch {
	case rep.Result.Aggregate != nil:
		if err := stats.RenderDistribution(out, *rep.Result.Aggregate, rep.Result.YourResult, rep.Result.Percentile, 0); err != nil {
			return fmt.Errorf("failed to write stats: %w", err)
		}
	case rep.StatsErr != nil:
		logErrf("stats unavailable: %v\n", rep.StatsErr)
	}
	if rep.ChartErr != nil {
		logErrf("chart unavailable: %v\n", rep.ChartErr)
		return nil
	}
	if _, err := fmt.Fprintln(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	title := fmt.Sprintf("Price (%s)", rep.Range)
	if err := stats.PlotChart(out, title, rep.Points, 0, 0, false); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func newStocksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stocks",
		Short: "List the stocks that can be guessed",
		Args:  cobra.NoArgs,
		RunE:  runStocksCmd,
	}
	cmd.Flags().StringVar(&stocksSector, "sector", "", "only stocks in this sector")
	cmd.Flags().StringVar(&stocksIndustry, "industry", "", "only stocks in this industry")
	cmd.Flags().StringVar(&stocksSearch, "search", "", "match ticker or company name")
	cmd.Flags().BoolVar(&stocksFilters, "filters", false, "list sectors and industries instead")
	cmd.MarkFlagsMutuallyExclusive("sector", "industry")
	return cmd
}

func runStocksCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	loader := a.stockLoader()
	stocks, origin := loader.Load(ctx)
	if origin != stocklist.OriginRemote {
		logErrf("Using %s stock list (service unreachable)\n", origin)
	}
	out := cmd.OutOrStdout()

	if stocksFilters {
		opts := loader.Filters(ctx, stocks)
		if _, err := fmt.Fprintf(out, "Sectors:\n  %s\n\nIndustries:\n  %s\n",
			strings.Join(opts.Sectors, "\n  "), strings.Join(opts.Industries, "\n  ")); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	stocks = stocklist.Apply(stocks, stockFilter())
	if q := strings.TrimSpace(stocksSearch); q != "" {
		stocks = stocklist.Search(stocks, q, len(stocks))
	}
	if err := stats.RenderStockTable(out, stocks); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func stockFilter() *stocklist.Filter {
	switch {
	case stocksSector != "":
		return &stocklist.Filter{Type: stocklist.FilterSector, Value: stocksSector}
	case stocksIndustry != "":
		return &stocklist.Filter{Type: stocklist.FilterIndustry, Value: stocksIndustry}
	default:
		return nil
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete today's saved game",
		Args:  cobra.NoArgs,
		RunE:  runResetCmd,
	}
}

func runResetCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	day := a.today()
	if err := resetSession(cmd.Context(), a.sessions); err != nil {
		return err
	}
	a.log.Info("reset", zap.String("day", day))
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed saved game for %s\n", day); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// resetSession drops the saved board. The day's stats record stays so the
// result is not submitted twice.
func resetSession(ctx context.Context, sessions *persist.Sessions) error {
	if err := sessions.Clear(ctx); err != nil {
		return fmt.Errorf("failed to remove saved game: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate(config.Defaults())), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// resolveSettings layers the config file, then the environment, under the
// flags the user set explicitly.
func resolveSettings(cmd *cobra.Command) (config.Settings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	envCfg, err := config.LoadEnv(".env", config.DefaultDotenvPath())
	if err != nil {
		return config.Settings{}, err
	}

	applyStringConfig(cmd, "api-url", &apiURL, fileCfg.API.BaseURL)
	applyDurationConfig(cmd, "timeout", &apiTimeout, fileCfg.API.Timeout)
	applyFloatConfig(cmd, "rps", &apiRPS, fileCfg.API.RPS)
	applyStringConfig(cmd, "store", &storeBackend, fileCfg.Store.Backend)
	applyStringConfig(cmd, "db", &storePath, fileCfg.Store.Path)
	applyStringConfig(cmd, "redis-addr", &redisAddr, fileCfg.Store.RedisAddr)
	applyIntConfig(cmd, "redis-db", &redisDB, fileCfg.Store.RedisDB)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-file", &logFile, fileCfg.Log.File)
	applyStringConfig(cmd, "timezone", &timezone, fileCfg.Game.Timezone)

	applyEnv(cmd, "api-url", &apiURL, envCfg.APIURL)
	applyEnv(cmd, "store", &storeBackend, envCfg.StoreBackend)
	applyEnv(cmd, "redis-addr", &redisAddr, envCfg.RedisAddr)
	applyEnv(cmd, "log-level", &logLevel, envCfg.LogLevel)
	applyEnv(cmd, "timezone", &timezone, envCfg.Timezone)

	settings := config.Settings{
		APIURL:       apiURL,
		APITimeout:   apiTimeout,
		RPS:          apiRPS,
		StoreBackend: strings.ToLower(strings.TrimSpace(storeBackend)),
		StorePath:    storePath,
		RedisAddr:    redisAddr,
		RedisDB:      redisDB,
		LogLevel:     logLevel,
		LogFile:      logFile,
		Timezone:     timezone,
	}
	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *config.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value.Duration
}

func applyEnv(cmd *cobra.Command, name string, target *string, value string) {
	if value == "" {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value
}

func defaultConfigTemplate(d config.Settings) string {
	return fmt.Sprintf(`# stockle configuration
# Uncomment a value to enable it.
# CLI flags override STOCKLE_* environment variables, which override this file.

[api]
# base_url = %q        # Game service base URL
# timeout = %q                      # Per-request timeout
# rps = %g                             # Maximum requests per second

[store]
# backend = %q                    # sqlite or redis
# path = %q
# redis_addr = %q
# redis_db = %d

[log]
# level = %q                         # debug, info, warn or error
# file = %q

[game]
# timezone = %q                      # IANA name that decides the calendar day
`,
		d.APIURL,
		d.APITimeout.String(),
		d.RPS,
		d.StoreBackend,
		d.StorePath,
		d.RedisAddr,
		d.RedisDB,
		d.LogLevel,
		d.LogFile,
		d.Timezone,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
