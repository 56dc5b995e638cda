package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ConfigDataPath        = "data-path"
	ConfigModelPath       = "model-path"
	ConfigLayout          = "layout"
	ConfigLayoutFile      = "layout-file"
	ConfigDenseMaxArity   = "dense-max-arity"
	ConfigInitWeight      = "init-weight"
	ConfigMemoryFraction  = "memory-fraction"
	ConfigLearningRate    = "learning-rate"
	ConfigEpisodes        = "episodes"
	ConfigThreads         = "threads"
	ConfigLearn           = "learn"
	ConfigCheckpointEvery = "checkpoint-every"
	ConfigReportEvery     = "report-every"
	ConfigEpsilon         = "epsilon"
	ConfigEpsilonMin      = "epsilon-min"
	ConfigEpsilonDecay    = "epsilon-decay"
	ConfigCornerBonus     = "corner-bonus"
	ConfigSeedFile        = "seed-file"
	ConfigGameLog         = "game-log"
	ConfigResultsDB       = "results-db"
	ConfigNatsURL         = "nats-url"
	ConfigNatsSubject     = "nats-subject"
	ConfigDebug           = "debug"
)

// pathKeys are the settings holding filesystem paths. They are resolved
// against the data path (or the executable's directory) when relative.
var pathKeys = []string{
	ConfigModelPath, ConfigLayoutFile, ConfigSeedFile, ConfigGameLog, ConfigResultsDB,
}

type Config struct {
	*viper.Viper
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(ConfigDataPath, "./data")
	v.SetDefault(ConfigModelPath, "")
	v.SetDefault(ConfigLayout, "reference")
	v.SetDefault(ConfigLayoutFile, "")
	v.SetDefault(ConfigDenseMaxArity, 6)
	v.SetDefault(ConfigInitWeight, 0.0)
	v.SetDefault(ConfigMemoryFraction, 0.75)
	v.SetDefault(ConfigLearningRate, 0.1)
	v.SetDefault(ConfigEpisodes, 10000)
	v.SetDefault(ConfigThreads, 1)
	v.SetDefault(ConfigLearn, true)
	v.SetDefault(ConfigCheckpointEvery, 1000)
	v.SetDefault(ConfigReportEvery, 100)
	v.SetDefault(ConfigEpsilon, 0.0)
	v.SetDefault(ConfigEpsilonMin, 0.0)
	v.SetDefault(ConfigEpsilonDecay, 1.0)
	v.SetDefault(ConfigCornerBonus, false)
	v.SetDefault(ConfigSeedFile, "")
	v.SetDefault(ConfigGameLog, "")
	v.SetDefault(ConfigResultsDB, "")
	v.SetDefault(ConfigNatsURL, "")
	v.SetDefault(ConfigNatsSubject, "tdl2048.progress")
	v.SetDefault(ConfigDebug, false)
}

// DefaultConfig returns a config holding only the default values. It does
// not look at flags, the environment, or config files.
func DefaultConfig() *Config {
	c := &Config{Viper: viper.New()}
	setDefaults(c.Viper)
	return c
}

func flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("tdl2048", pflag.ContinueOnError)
	fs.String(ConfigDataPath, "./data", "directory holding models, layouts and logs")
	fs.String(ConfigModelPath, "", "weight file to load at startup and to checkpoint into")
	fs.String(ConfigLayout, "reference", "built-in tuple layout: reference, extended or experimental")
	fs.String(ConfigLayoutFile, "", "YAML file with a custom tuple layout; overrides --layout")
	fs.Int(ConfigDenseMaxArity, 6, "tuples up to this arity use dense tables, larger ones sparse maps")
	fs.Float64(ConfigInitWeight, 0.0, "initial value of every weight")
	fs.Float64(ConfigMemoryFraction, 0.75, "refuse dense tables larger than this fraction of system memory")
	fs.Float64(ConfigLearningRate, 0.1, "TD(0) learning rate")
	fs.Int(ConfigEpisodes, 10000, "number of games to play")
	fs.Int(ConfigThreads, 1, "number of games played concurrently")
	fs.Bool(ConfigLearn, true, "update the weights at the end of every game")
	fs.Int(ConfigCheckpointEvery, 1000, "save the model every n games (0 disables)")
	fs.Int(ConfigReportEvery, 100, "log aggregate statistics every n games")
	fs.Float64(ConfigEpsilon, 0.0, "initial exploration probability")
	fs.Float64(ConfigEpsilonMin, 0.0, "lower bound of the exploration probability")
	fs.Float64(ConfigEpsilonDecay, 1.0, "multiplier applied to epsilon after every game")
	fs.Bool(ConfigCornerBonus, false, "add the corner heuristic to move values")
	fs.String(ConfigSeedFile, "", "file of per-game seeds; created when missing")
	fs.String(ConfigGameLog, "", "CSV file receiving one row per game")
	fs.String(ConfigResultsDB, "", "sqlite database receiving one row per game")
	fs.String(ConfigNatsURL, "", "NATS server for progress reports")
	fs.String(ConfigNatsSubject, "tdl2048.progress", "NATS subject for progress reports")
	fs.Bool(ConfigDebug, false, "debug logging on")
	return fs
}

// Load reads settings from, in decreasing order of precedence, the given
// command-line arguments, TDL2048_* environment variables, a config.yaml file
// in $HOME/.tdl2048 or the working directory, and the defaults.
func (c *Config) Load(args []string) error {
	c.Viper = viper.New()
	setDefaults(c.Viper)

	fs := flagSet()
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.BindPFlags(fs); err != nil {
		return err
	}

	c.SetEnvPrefix("tdl2048")
	c.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.AutomaticEnv()

	c.SetConfigName("config")
	c.SetConfigType("yaml")
	c.AddConfigPath("$HOME/.tdl2048")
	c.AddConfigPath(".")
	err := c.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return err
	}
	return nil
}

// AdjustRelativePaths makes the data path absolute (relative to basepath) and
// resolves every other relative path setting against the data path.
func (c *Config) AdjustRelativePaths(basepath string) {
	dataPath := c.GetString(ConfigDataPath)
	if !filepath.IsAbs(dataPath) {
		dataPath = filepath.Join(basepath, dataPath)
		c.Set(ConfigDataPath, dataPath)
	}
	for _, key := range pathKeys {
		p := c.GetString(key)
		if p == "" || filepath.IsAbs(p) {
			continue
		}
		c.Set(key, filepath.Join(dataPath, p))
	}
}

// DefaultModelPath points the model path at model.ntn in the data
// directory when none is set. Call it after AdjustRelativePaths.
func (c *Config) DefaultModelPath() {
	if c.GetString(ConfigModelPath) == "" {
		c.Set(ConfigModelPath, filepath.Join(c.GetString(ConfigDataPath), "model.ntn"))
	}
}

// EnsureDataPath creates the data directory if it does not exist yet.
func (c *Config) EnsureDataPath() error {
	return os.MkdirAll(c.GetString(ConfigDataPath), 0o755)
}
