package cli

import (
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"optionflow/internal/config"
	"optionflow/internal/logging"
	"optionflow/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-01-06"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.DataStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	if cfg.UI.ColorDisabled {
		color.NoColor = true
	}

	// Initialize SQLite store
	dataStore, err := store.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, history features unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Msg("SQLite store initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "optionflow",
		Short: "OptionFlow - option chain signal scanner for Indian F&O",
		Long: `OptionFlow scans option chains for NSE index and stock derivatives and
synthesizes directional verdicts from dealer positioning, OI velocity and
detected position structures.

Use 'optionflow help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/optionflow)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newChainCmd(app))
	rootCmd.AddCommand(newVerdictsCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("OptionFlow v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Scan Configuration")
	output.Printf("  Symbols:         %v\n", cfg.Scan.Symbols)
	output.Printf("  Interval:        %s\n", cfg.Scan.Interval)
	output.Printf("  Data Dir:        %s\n", cfg.Scan.DataDir)
	output.Println()

	output.Bold("Engine Configuration")
	output.Printf("  Risk-Free Rate:  %.3f\n", cfg.Engine.RiskFreeRate)
	output.Printf("  Velocity Depth:  %d samples\n", cfg.Engine.VelocityCapacity)
	output.Printf("  Default Lot:     %d\n", cfg.Engine.DefaultLotSize)
	output.Printf("  OI Significance: %d contracts\n", cfg.Engine.SignificanceFloor)
	output.Printf("  Similarity:      %.2f\n", cfg.Engine.SimilarityRatio)
	output.Printf("  Ratio Threshold: %.2f\n", cfg.Engine.RatioSpreadThreshold)
	output.Println()

	output.Bold("Bias Configuration")
	output.Printf("  Macro Weight:    %.2f\n", cfg.Bias.MacroWeight)
	output.Printf("  GEX Weight:      %.2f\n", cfg.Bias.GEXWeight)
	output.Printf("  PCR Vel Weight:  %.2f\n", cfg.Bias.PCRVelocityWeight)
	output.Printf("  VIX Weight:      %.2f\n", cfg.Bias.VIXWeight)
	output.Printf("  GEX Convention:  bullish-when-negative=%v\n", cfg.Bias.GEXBullishWhenNegative)
	output.Println()

	output.Bold("Storage")
	output.Printf("  DB Path:         %s\n", cfg.DBPath())
	output.Printf("  Retain Days:     %d\n", cfg.Storage.RetainDays)

	return nil
}
