package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/certverify/internal/model"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=..."
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "certverify",
	Short: "certverify - Certificate authenticity verification",
	Long: `certverify compares two certificate documents and reports whether they
describe the same credential and whether either looks tampered with.

A verification runs OCR on both documents, extracts structured fields with a
language model, compares the fields, then asks a visual similarity service to
compare the profile photo and signature regions.

certverify reports what the services observed. It does not decide whether a
certificate is legally valid.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of certverify.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("certverify v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.certverify/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".certverify"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Every known key gets a default so CERTVERIFY_* variables can override it
	if err := registerDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	// Read in environment variables that match CERTVERIFY_*, e.g. CERTVERIFY_OCR_BASE_URL
	viper.SetEnvPrefix("CERTVERIFY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults flattens cfg into dotted viper keys
func registerDefaults(cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	setDefaults("", tree)

	// Keys omitted from YAML when empty still need a default to be visible to env lookups
	for _, key := range optionalKeys {
		if !viper.IsSet(key) {
			viper.SetDefault(key, "")
		}
	}
	return nil
}

var optionalKeys = []string{
	"extraction.api_key",
	"extraction.base_url",
	"extraction.project_id",
	"extraction.region",
	"http.http_proxy",
	"http.https_proxy",
	"http.no_proxy",
	"server.api_key",
	"storage.bucket",
	"storage.project_id",
}

func setDefaults(prefix string, tree map[string]any) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if sub, ok := value.(map[string]any); ok {
			setDefaults(key, sub)
			continue
		}
		viper.SetDefault(key, value)
	}
}

// loadConfig builds the effective configuration: defaults, then the config
// file, then CERTVERIFY_* variables, then provider credentials from their
// conventional environment variables
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyProviderEnv(cfg)
	return cfg, nil
}

// applyProviderEnv fills provider credentials the config file left empty
func applyProviderEnv(cfg *model.Config) {
	ext := &cfg.Extraction
	switch strings.ToLower(ext.Provider) {
	case "openai":
		if ext.APIKey == "" {
			ext.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if ext.APIKey == "" {
			ext.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && ext.BaseURL == "" {
			ext.BaseURL = baseURL
		}
	case "gemini", "vertex":
		if ext.ProjectID == "" {
			ext.ProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
		}
	}
	if cfg.Storage.ProjectID == "" {
		cfg.Storage.ProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
}

// newLogger returns a JSON logger on stderr. Pipeline transitions are logged
// at Info, so they only show with --verbose.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
