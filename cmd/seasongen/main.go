package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/derekprior/seasongen/internal/config"
	"github.com/derekprior/seasongen/internal/excel"
	"github.com/derekprior/seasongen/internal/generator"
	"github.com/derekprior/seasongen/internal/league"
	"github.com/derekprior/seasongen/internal/schedule"
	"github.com/derekprior/seasongen/internal/store"
	"github.com/derekprior/seasongen/internal/strategy"
	"github.com/derekprior/seasongen/internal/validator"
)

const defaultConfigFile = "config.yaml"

func resolveConfigPath(configFlag string) (string, error) {
	if configFlag != "" {
		return configFlag, nil
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile, nil
	}
	return "", fmt.Errorf("no config file found. Either create %s in the current directory or pass --config", defaultConfigFile)
}

func setupLogger(cfg config.Log) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "seasongen",
		Short: "Season schedule generator",
	}

	var configFile string
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: config.yaml in current directory)")

	var initOutputPath string
	initCmd := &cobra.Command{
		Use:          "init",
		Short:        "Create a starter config.yaml in the current directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(initOutputPath)
		},
	}
	initCmd.Flags().StringVarP(&initOutputPath, "output", "o", defaultConfigFile, "Output path for the config file")

	slotsCmd := &cobra.Command{
		Use:   "slots",
		Short: "Manage the season's slot inventory",
	}
	slotsGenerateCmd := &cobra.Command{
		Use:          "generate",
		Short:        "Create any missing slots for the configured season",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runSlots(ctx, configPath)
		},
	}
	slotsCmd.AddCommand(slotsGenerateCmd)

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate, export and validate schedules",
	}

	var xlsxPath string
	generateCmd := &cobra.Command{
		Use:          "generate",
		Short:        "Generate (or regenerate) the season's schedule",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runGenerate(ctx, configPath, xlsxPath)
		},
	}
	generateCmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the schedule to this Excel file")

	var exportPath string
	exportCmd := &cobra.Command{
		Use:          "export",
		Short:        "Write the stored schedule to an Excel file",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runExport(ctx, configPath, exportPath)
		},
	}
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "schedule.xlsx", "Output Excel file path")

	validateCmd := &cobra.Command{
		Use:          "validate <schedule.xlsx>",
		Short:        "Validate a schedule workbook against the config",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := resolveConfigPath(configFile)
			if err != nil {
				return err
			}
			return runValidate(configPath, args[0])
		},
	}

	scheduleCmd.AddCommand(generateCmd, exportCmd, validateCmd)
	rootCmd.AddCommand(initCmd, slotsCmd, scheduleCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runInit(outputPath string) error {
	if _, err := os.Stat(outputPath); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use -o to write elsewhere", outputPath)
	}
	if err := os.WriteFile(outputPath, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Printf("✓ Created %s\n", outputPath)
	return nil
}

// app is what every database-backed command starts from.
type app struct {
	cfg     *config.Config
	db      *store.DB
	service *generator.Service
	season  league.Season
}

// open loads the config, opens the database and syncs the configured season
// into it.
func open(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	setupLogger(cfg.Log)

	strat, err := strategy.Get(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	wanted, err := cfg.League()
	if err != nil {
		return nil, err
	}

	db, err := store.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	var season league.Season
	err = db.RunInTx(ctx, func(q *store.Queries) error {
		season, err = q.SyncSeason(ctx, wanted)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("syncing season: %w", err)
	}
	log.Debug().Int64("season_id", season.ID).Str("season", season.Name).Str("database", cfg.Database.Filename).Msg("season synced")

	layout := generator.SlotLayout{
		Days:   cfg.SlotDays(),
		Bands:  cfg.Slots.TimeBands,
		Fields: cfg.Slots.Fields,
	}
	return &app{
		cfg:     cfg,
		db:      db,
		service: generator.New(db, layout, generator.WithStrategy(strat)),
		season:  season,
	}, nil
}

func runSlots(ctx context.Context, configPath string) error {
	a, err := open(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.db.Close()

	created, err := a.service.EnsureSlots(ctx, a.season.ID)
	if err != nil {
		return err
	}
	slots, err := a.db.Queries.ListSlots(ctx, a.season.ID)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %d slots created, %d total for %s\n", created, len(slots), a.season.Name)
	return nil
}

func runGenerate(ctx context.Context, configPath, xlsxPath string) error {
	a, err := open(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.db.Close()

	if _, err := a.service.EnsureSlots(ctx, a.season.ID); err != nil {
		return err
	}
	result, err := a.service.Generate(ctx, a.season.ID)
	var inv *schedule.InvariantError
	switch {
	case errors.Is(err, generator.ErrNoEligibleDivisions):
		return fmt.Errorf("nothing to schedule: %w", err)
	case errors.As(err, &inv):
		for _, p := range inv.Problems {
			fmt.Fprintf(os.Stderr, "✗ %s\n", p)
		}
		return fmt.Errorf("generation aborted, no schedule was written: %w", err)
	case err != nil:
		return fmt.Errorf("generating schedule: %w", err)
	}

	printSummary(result)

	if xlsxPath != "" {
		if err := export(ctx, a, xlsxPath); err != nil {
			return err
		}
	}
	if n := len(result.Unresolved); n > 0 {
		return fmt.Errorf("schedule is incomplete: %d of %d pairings placed", result.GamesCreated, result.Pairings)
	}
	return nil
}

func printSummary(result *generator.Result) {
	fmt.Printf("Schedule %d (run %s) generated at %s\n",
		result.ScheduleID, result.RunID, result.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if result.GamesDeleted > 0 {
		fmt.Printf("Replaced %d games from the previous schedule\n", result.GamesDeleted)
	}
	if len(result.Unresolved) == 0 {
		fmt.Printf("✓ All %d games scheduled (%d under relaxed constraints)\n", result.GamesCreated, result.Relaxed)
	} else {
		fmt.Fprintf(os.Stderr, "⚠ %d of %d games scheduled, %d pairings unresolved\n",
			result.GamesCreated, result.Pairings, len(result.Unresolved))
	}
	for _, name := range result.Skipped {
		fmt.Printf("  skipped division %s (fewer than two teams)\n", name)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Division", "Team", "Games", "Home", "Away", "Relaxed"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
	})
	for _, tm := range result.Teams {
		t.AppendRow(table.Row{tm.Division, tm.Name, tm.Games, tm.Home, tm.Away, tm.Relaxed})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	if len(result.Unresolved) > 0 {
		fmt.Println("\nUnresolved pairings:")
		for _, p := range result.Unresolved {
			fmt.Printf("  %s\n", p)
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(result.Warnings))
		for _, w := range result.Warnings {
			fmt.Printf("  ⚠ %s\n", w)
		}
	}
}

func runExport(ctx context.Context, configPath, outputPath string) error {
	a, err := open(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.db.Close()
	return export(ctx, a, outputPath)
}

func export(ctx context.Context, a *app, outputPath string) error {
	sch, err := a.db.Queries.GetSchedule(ctx, a.season.ID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s has no schedule yet; run schedule generate first", a.season.Name)
	}
	if err != nil {
		return err
	}
	// Reload so division game lists reflect the stored schedule.
	season, err := a.db.Queries.GetSeason(ctx, a.season.ID)
	if err != nil {
		return err
	}
	games, err := a.db.Queries.ListScheduleGames(ctx, sch.ID)
	if err != nil {
		return err
	}
	slots, err := a.db.Queries.ListSlots(ctx, season.ID)
	if err != nil {
		return err
	}

	f, err := excel.Generate(season, slots, games, a.cfg.Slots.Fields)
	if err != nil {
		return fmt.Errorf("generating Excel: %w", err)
	}
	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("saving file: %w", err)
	}
	fmt.Printf("✓ Schedule saved to %s\n", outputPath)
	return nil
}

func runValidate(configPath, schedulePath string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	setupLogger(cfg.Log)

	violations, err := validator.Validate(cfg, schedulePath)
	if err != nil {
		return fmt.Errorf("validating: %w", err)
	}

	errs, warnings := 0, 0
	for _, v := range violations {
		where := ""
		if v.Row > 0 {
			where = fmt.Sprintf(" (row %d)", v.Row)
		}
		switch v.Type {
		case "error":
			errs++
			fmt.Printf("✗ Rule violation%s: %s\n", where, v.Message)
		case "warning":
			warnings++
			fmt.Printf("⚠ Constraint relaxed%s: %s\n", where, v.Message)
		}
	}

	fmt.Printf("\nValidation complete: %d rule violations, %d warnings\n", errs, warnings)
	if errs > 0 {
		return fmt.Errorf("%d rule violations found", errs)
	}
	return nil
}
