package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# OptionFlow Scanner Configuration

[scan]
# Instruments to scan each cycle
symbols = ["NIFTY", "BANKNIFTY"]
# Scan cadence; the OI velocity windows assume 3m
interval = "3m"
# Directory the CSV chain source reads from
data_dir = ""

[engine]
# Annualized risk-free rate for the pricing model (India 10Y G-Sec)
risk_free_rate = 0.065
# Per-contract OI history depth in samples (60 = 3h at 3m cadence)
velocity_capacity = 60
# Lot size applied when a chain row carries none
default_lot_size = 50
# Minimum absolute OI change (contracts) the structure detector classifies
significance_floor = 500
# Magnitude similarity (smaller/larger) pairing two OI moves as one trade
similarity_ratio = 0.4
# Leg magnitude ratio separating ratio spreads from 1:1 spreads
ratio_spread_threshold = 2.5

[bias]
# Component weights of the macro bias composite; must sum to 1.0
macro_weight = 0.25
gex_weight = 0.25
pcr_velocity_weight = 0.30
vix_weight = 0.20
# Score negative net GEX as directionally favorable (dealer-exposure
# convention)
gex_bullish_when_negative = true

[storage]
# SQLite database path; empty uses the config directory
db_path = ""
# Days of scan history to keep; 0 keeps everything
retain_days = 30

[ui]
# Turn off ANSI color in terminal output
color_disabled = false
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return fmt.Errorf("config file not found, created template at %s", path)
}
