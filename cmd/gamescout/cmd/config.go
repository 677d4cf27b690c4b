package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/gamescout/configs"
	"github.com/Aman-CERP/gamescout/internal/config"
	"github.com/Aman-CERP/gamescout/internal/output"
	"github.com/Aman-CERP/gamescout/internal/search"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration and search rules",
		Long: `Manage the user configuration file and inspect the search rules.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/gamescout/config.yaml)
  3. Project config (.gamescout.yaml)
  4. Environment variables (GAMESCOUT_*)`,
		Example: `  # Create user config from template
  gamescout config init

  # Show effective configuration
  gamescout config show

  # Print user config file path
  gamescout config path

  # Print the active search rules
  gamescout config rules`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRulesCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Create the user configuration file from a template.

The file is created at ~/.config/gamescout/config.yaml (or
$XDG_CONFIG_HOME/gamescout/config.yaml if XDG_CONFIG_HOME is set).
With --force an existing file is backed up first.`,
		Example: `  # Create user config
  gamescout config init

  # Replace existing config, keeping a backup
  gamescout config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration after backing it up")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		defaults   bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the effective configuration after merging all sources, or
the built-in defaults with --defaults. The provider API key is never shown.`,
		Example: `  gamescout config show
  gamescout config show --json
  gamescout config show --defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, defaults)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Show built-in defaults only")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return nil
		},
	}
}

func newConfigRulesCmd() *cobra.Command {
	var (
		example bool
		check   bool
	)

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print or check the search rules",
		Long: `Print the search rules in effect: the file named by rules_path merged
over the built-in tables, or the built-in tables alone.

With --check the rules are loaded and validated without printing them.
With --example a commented starter rules file is printed.`,
		Example: `  gamescout config rules > rules.yaml
  gamescout config rules --check
  gamescout config rules --example`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigRules(cmd, example, check)
		},
	}

	cmd.Flags().BoolVar(&example, "example", false, "Print an example rules file")
	cmd.Flags().BoolVar(&check, "check", false, "Validate the rules without printing them")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.GetUserConfigPath()

	var backupPath string
	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.KeyValue("Location", path)
			out.Status("", "Use --force to replace it (a backup is kept)")
			return nil
		}
		var err error
		if backupPath, err = config.BackupFile(path); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.UserConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created user configuration")
	out.KeyValue("Location", path)
	if backupPath != "" {
		out.KeyValue("Backup", backupPath)
	}
	out.Newline()
	out.Status("", "Edit the file, then run 'gamescout config show' to verify")
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput, defaults bool) error {
	var (
		cfg *config.Config
		err error
	)
	if defaults {
		cfg = config.NewConfig()
	} else if cfg, err = loadConfig(); err != nil {
		return err
	}

	if jsonOutput {
		return output.New(cmd.OutOrStdout()).JSON(cfg)
	}

	// The API key is tagged out of JSON; YAML needs it cleared by hand.
	shown := *cfg
	if shown.Provider.APIKey != "" {
		shown.Provider.APIKey = "********"
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, _ = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigRules(cmd *cobra.Command, example, check bool) error {
	if example {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), configs.RulesTemplate)
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rules := search.DefaultRules()
	source := "built-in"
	if cfg.RulesPath != "" {
		if rules, err = search.LoadRules(cfg.RulesPath); err != nil {
			return err
		}
		source = cfg.RulesPath
	}

	if check {
		out := output.New(cmd.OutOrStdout())
		out.Successf("Rules are valid (%s)", source)
		out.KeyValue("franchises", len(rules.Franchises))
		out.KeyValue("abbreviations", len(rules.Abbreviations))
		out.KeyValue("intents", len(rules.Intents))
		return nil
	}

	data, err := yaml.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# rules: %s\n%s", source, data)
	return nil
}
