package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-listen/config"
	"github.com/RyanBlaney/sonido-listen/logging"
)

var (
	configFile string
	envFile    string
	verbose    bool

	v = config.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sonido-listen",
	Short: "Real-time pitch detection from a microphone",
	Long: `Captures audio at 8 kHz, decimates each window to the analysis rate,
runs a radix-2 FFT and reports the strongest frequencies.

Sources:
- portaudio: the default input device
- wav:       a 16-bit WAV file recorded at 8 kHz
- sine:      a synthesized tone, useful without input hardware`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/sonido-listen/sonido-listen.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output, same as --log-level debug")
	rootCmd.PersistentFlags().String("log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("output", "o", "text",
		"output format (text, json)")

	v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
}

// initializeConfig loads the dotenv file and config file, binds the command's
// flags and applies the log level
func initializeConfig(cmd *cobra.Command) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := readConfigFile(); err != nil {
		return err
	}

	if err := bindFlags(cmd, v); err != nil {
		return err
	}

	level := v.GetString("log_level")
	if verbose {
		level = "debug"
	}
	logging.SetLevel(logging.ParseLevel(level))

	if v.ConfigFileUsed() != "" {
		logging.Debug("Using config file", logging.Fields{"path": v.ConfigFileUsed()})
	}
	return nil
}

func readConfigFile() error {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		return nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "sonido-listen"))
	}
	v.AddConfigPath("/etc/sonido-listen")
	v.AddConfigPath(".")
	v.SetConfigName("sonido-listen")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// bindFlags binds each local flag carrying a config key annotation to viper
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[configKeyAnnotation]
		if !ok || len(keys) == 0 {
			return
		}
		if err := v.BindPFlag(keys[0], f); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

const configKeyAnnotation = "config_key"

// annotate records which config key a flag overrides
func annotate(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(fmt.Sprintf("annotate flag %s: %v", name, err))
	}
}

// loadConfig decodes and validates the effective configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envName(key string) string {
	return config.EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}
