package main

import (
	"bufio"
	"calheat/internal/calendar"
	"calheat/internal/export"
	"calheat/internal/facets"
	"calheat/internal/models"
	"calheat/internal/source"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
	"golang.org/x/term"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "calheat",
		Usage: "Turn dated records into a year-by-year activity calendar with faceted filters.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}, Usage: "debug, info, warn or error"},
		},
		Commands: []*cli.Command{
			authCommand(),
			calendarCommand(),
			facetsCommand(),
			exportCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to read its calendars.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "token-dir", Value: ".", EnvVars: []string{"GOOGLE_TOKEN_DIR"}, Usage: "Directory for token-<account>.json files"},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(c.String("log-level"))
			logger.Info("Starting Google authentication flow.")

			config, err := source.GetOAuthConfig(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := source.TokenFromWeb(c.Context, config, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			if accountName == "" {
				return fmt.Errorf("account name cannot be empty")
			}
			tokenFile := source.GoogleConfig{TokenDir: c.String("token-dir")}.TokenPath(accountName)

			if err := source.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

// sourceFlags are shared by every command that loads records.
func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{Name: "source", Aliases: []string{"s"}, Required: true, EnvVars: []string{"CALHEAT_SOURCE"},
			Usage: "Record source: path.json|.csv|.ics, http(s)://..., caldav:<name> or google:<id>[,<id>]; repeatable"},
		&cli.StringFlag{Name: "date-field", Value: calendar.DefaultDateField, EnvVars: []string{"CALHEAT_DATE_FIELD"}, Usage: "Record field holding the date"},
		&cli.StringSliceFlag{Name: "numeric", Usage: "CSV column to read as numbers; repeatable"},
		&cli.IntFlag{Name: "years", Value: 1, Usage: "Years of events to fetch from calendar servers, counting the current one"},
		&cli.StringFlag{Name: "dedupe", Value: "uid", Usage: "Drop records repeating an earlier record's value in this field across sources; empty disables"},
		&cli.StringFlag{Name: "timezone", EnvVars: []string{"TIMEZONE"}, Usage: "IANA zone used for today and event dates (default: local)"},
		&cli.StringFlag{Name: "token-dir", Value: ".", EnvVars: []string{"GOOGLE_TOKEN_DIR"}, Usage: "Directory holding Google token files"},
	}
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "categories", EnvVars: []string{"CALHEAT_CATEGORIES"}, Usage: "Filter category config (.yaml, .yml or .json)"},
		&cli.StringSliceFlag{Name: "filter", Aliases: []string{"f"}, Usage: "Active filter as category=value; value __ANY__ selects any; repeatable"},
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{Name: "format", Value: "text", Usage: "Output format: text or json"}
}

// env bundles what every command needs after flag parsing.
type env struct {
	logger     *slog.Logger
	aggregator *calendar.Aggregator
	records    []models.Record
}

func loadEnv(c *cli.Context) (*env, error) {
	logger := setupLogger(c.String("log-level"))

	loc := time.Local
	if tz := c.String("timezone"); tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone '%s': %w", tz, err)
		}
	}

	aggregator := calendar.NewAggregator(logger,
		calendar.WithDateField(c.String("date-field")),
		calendar.WithLocation(loc),
	)

	records, err := loadRecords(c, logger, loc)
	if err != nil {
		// The calendar is only built from a successful load.
		logger.Error("No data available", "error", err)
		return nil, fmt.Errorf("no data available: %w", err)
	}

	return &env{logger: logger, aggregator: aggregator, records: records}, nil
}

func loadRecords(c *cli.Context, logger *slog.Logger, loc *time.Location) ([]models.Record, error) {
	refs := c.StringSlice("source")
	cfg := sourceConfig(c, logger, loc, refs)

	var sources []source.Source
	for _, ref := range refs {
		src, err := source.Open(c.Context, ref, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open source %s: %w", ref, err)
		}
		sources = append(sources, src)
	}
	if len(sources) == 1 {
		return sources[0].Load(c.Context)
	}
	return source.NewMulti(logger, sources, refs, c.String("dedupe"), c.String("date-field")).Load(c.Context)
}

func sourceConfig(c *cli.Context, logger *slog.Logger, loc *time.Location, refs []string) source.Config {
	now := time.Now().In(loc)
	years := c.Int("years")
	if years < 1 {
		years = 1
	}

	cfg := source.Config{
		Logger:         logger,
		DateField:      c.String("date-field"),
		Location:       loc,
		NumericColumns: c.StringSlice("numeric"),
		Since:          time.Date(now.Year()-years+1, time.January, 1, 0, 0, 0, 0, loc),
		Until:          time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, loc),
		CalDAV: source.CalDAVConfig{
			Endpoint: os.Getenv("CALDAV_ENDPOINT"),
			Username: os.Getenv("CALDAV_USERNAME"),
			Password: os.Getenv("CALDAV_PASSWORD"),
		},
		Google: source.GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			Account:      os.Getenv("GOOGLE_ACCOUNT"),
			TokenDir:     c.String("token-dir"),
		},
	}

	if cfg.CalDAV.Password == "" && needsCalDAV(refs) {
		cfg.CalDAV.Password = promptPassword(fmt.Sprintf("CalDAV password for %s: ", cfg.CalDAV.Username))
		// Ask once per process, not once per --watch cycle.
		os.Setenv("CALDAV_PASSWORD", cfg.CalDAV.Password)
	}
	return cfg
}

func needsCalDAV(refs []string) bool {
	for _, ref := range refs {
		if strings.HasPrefix(ref, "caldav:") {
			return true
		}
	}
	return false
}

// promptPassword reads a password without echo when stdin is a terminal.
func promptPassword(prompt string) string {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return ""
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return ""
	}
	return string(password)
}

// newEngine builds the facet engine from --categories and applies --filter.
// It returns nil when no categories are configured.
func newEngine(c *cli.Context, e *env) (*facets.Engine, error) {
	path := c.String("categories")
	if path == "" {
		if len(c.StringSlice("filter")) > 0 {
			return nil, fmt.Errorf("--filter needs --categories")
		}
		return nil, nil
	}

	categories, err := facets.LoadCategories(path)
	if err != nil {
		return nil, err
	}
	engine, err := facets.New(e.records, categories,
		facets.WithDateField(e.aggregator.DateField()),
		facets.WithLogger(e.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create facet engine: %w", err)
	}

	for _, f := range c.StringSlice("filter") {
		id, value, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("invalid filter %q, want category=value", f)
		}
		if _, known := engine.Category(id); !known {
			return nil, fmt.Errorf("unknown filter category %q", id)
		}
		engine.AddFilter(id, filterValue(engine, id, value))
	}
	return engine, nil
}

// filterValue resolves a command-line filter value against the values the
// category actually holds, so pages=3 selects the number 3 when the records
// carry numbers. Unmatched text stays a string.
func filterValue(engine *facets.Engine, id, raw string) models.Value {
	for _, v := range engine.UniqueValues(id) {
		if v.String() == raw {
			return v
		}
	}
	return models.String(raw)
}

func calendarCommand() *cli.Command {
	flags := append(sourceFlags(), filterFlags()...)
	flags = append(flags,
		formatFlag(),
		&cli.BoolFlag{Name: "colors", Usage: "Shade the text calendar with ANSI colors"},
	)
	return &cli.Command{
		Name:  "calendar",
		Usage: "Aggregate records into per-year calendar grids.",
		Flags: flags,
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			engine, err := newEngine(c, e)
			if err != nil {
				return err
			}

			result := e.aggregator.Aggregate(e.records)
			scale := calendar.DefaultColorScale(result.Data)

			if c.String("format") == "json" {
				return writeJSON(c.App.Writer, calendarOutput(result, scale, engine))
			}
			renderCalendar(c.App.Writer, result, scale, engine, c.Bool("colors"))
			return nil
		},
	}
}

type calendarJSON struct {
	Today      string                           `json:"today"`
	Years      models.CalendarData              `json:"years"`
	Months     map[int][]calendar.MonthPosition `json:"months"`
	ColorScale []calendar.ColorThreshold        `json:"colorScale"`
	Summary    calendar.Summary                 `json:"summary"`
	Skipped    []calendar.SkippedRecord         `json:"skipped"`
	Filtered   []string                         `json:"filtered,omitempty"`
}

func calendarOutput(result *calendar.Result, scale []calendar.ColorThreshold, engine *facets.Engine) calendarJSON {
	out := calendarJSON{
		Today:      result.Today,
		Years:      result.Data,
		Months:     make(map[int][]calendar.MonthPosition, len(result.Data)),
		ColorScale: scale,
		Summary:    result.Summary(),
		Skipped:    result.Skipped,
	}
	if out.Skipped == nil {
		out.Skipped = []calendar.SkippedRecord{}
	}
	for _, year := range result.Data.Years() {
		out.Months[year] = calendar.MonthPositions(year, result.Today)
		if engine == nil {
			continue
		}
		for _, cell := range result.Data[year] {
			if engine.CellFiltered(cell) {
				out.Filtered = append(out.Filtered, cell.Date)
			}
		}
	}
	return out
}

func facetsCommand() *cli.Command {
	flags := append(sourceFlags(), filterFlags()...)
	flags = append(flags, formatFlag())
	return &cli.Command{
		Name:  "facets",
		Usage: "Show filter options with counts for the active filters.",
		Flags: flags,
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return err
			}
			engine, err := newEngine(c, e)
			if err != nil {
				return err
			}
			if engine == nil {
				return fmt.Errorf("facets needs --categories")
			}

			matching := 0
			for _, r := range e.records {
				if engine.RecordPasses(r) {
					matching++
				}
			}
			views := engine.View()

			if c.String("format") == "json" {
				return writeJSON(c.App.Writer, struct {
					Records    int                   `json:"records"`
					Matching   int                   `json:"matching"`
					Active     []models.ActiveFilter `json:"active"`
					Categories []facets.CategoryView `json:"categories"`
				}{len(e.records), matching, engine.ActiveFilters(), views})
			}
			renderFacets(c.App.Writer, views, len(e.records), matching)
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	flags := append(sourceFlags(), filterFlags()...)
	flags = append(flags,
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "ICS file to write; - for stdout"},
		&cli.IntFlag{Name: "watch", Usage: "Reload the sources and rewrite the file every N seconds"},
	)
	return &cli.Command{
		Name:  "export",
		Usage: "Write one all-day event per active day to an iCalendar file.",
		Flags: flags,
		Action: func(c *cli.Context) error {
			if !c.IsSet("watch") {
				return runExport(c)
			}

			interval := time.Duration(c.Int("watch")) * time.Second
			if interval <= 0 {
				return fmt.Errorf("--watch must be a positive number of seconds")
			}
			logger := setupLogger(c.String("log-level"))
			logger.Info("Starting watcher.", "interval", interval)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if err := runExport(c); err != nil {
					logger.Error("Export cycle failed", "error", err)
				}
				select {
				case <-c.Context.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
}

func runExport(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	engine, err := newEngine(c, e)
	if err != nil {
		return err
	}

	result := e.aggregator.Aggregate(e.records)
	opts := export.Options{Logger: e.logger, DateField: e.aggregator.DateField()}
	if engine != nil {
		opts.Filter = engine.RecordPasses
	}

	out := c.String("out")
	if out == "-" {
		_, err := export.ICS(c.App.Writer, result.Data, opts)
		return err
	}
	return writeFileAtomic(out, func(w io.Writer) error {
		_, err := export.ICS(w, result.Data, opts)
		return err
	})
}

// writeFileAtomic writes to a temporary file next to path and renames it into place.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
