// Package config loads settings for the fourplay binaries from flags, the
// environment (FOURPLAY_*) and an optional YAML file, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hailam/fourplay/internal/engine"
	"github.com/hailam/fourplay/internal/storage"
)

const envPrefix = "FOURPLAY"

// Logging is shared by every binary.
type Logging struct {
	Level string
	Debug bool
}

// ZerologLevel returns the configured level; Debug forces debug.
func (l Logging) ZerologLevel() (zerolog.Level, error) {
	if l.Debug {
		return zerolog.DebugLevel, nil
	}
	return zerolog.ParseLevel(l.Level)
}

// Solver configures the fourplay command.
type Solver struct {
	Logging
	TableLog2      int
	MemoryFraction float64
	BookPath       string
	Weak           bool
	Analyze        bool
	Timeout        time.Duration
	Shell          bool
	CPUProfile     string
	Args           []string
}

// TableSize returns the table log2 to use, lowered to fit MemoryFraction of
// physical memory when that is set.
func (c *Solver) TableSize() int {
	if c.MemoryFraction > 0 {
		return min(c.TableLog2, engine.Log2ForMemory(c.MemoryFraction))
	}
	return c.TableLog2
}

// BookBuilder configures the fourplay-book command.
type BookBuilder struct {
	Logging
	Depth     int
	Log2      int
	Workers   int
	TableLog2 int
	Out       string
	DB        string
	Fresh     bool
}

// LoadSolver parses args for the solver command.
func LoadSolver(args []string) (*Solver, error) {
	fs := pflag.NewFlagSet("fourplay", pflag.ContinueOnError)
	fs.Int("table-log2", engine.DefaultTableLog2, "transposition table size, as log2 of the slot count")
	fs.Float64("table-memory-fraction", 0, "if set, shrink the table to fit this fraction of physical memory")
	fs.String("book", "", "opening book file (default <datadir>/7x6.book)")
	fs.Bool("weak", false, "only compute win, draw or loss")
	fs.Bool("analyze", false, "score every column instead of the position")
	fs.Duration("timeout", 0, "give up on a position after this long (0 = never)")
	fs.Bool("shell", false, "start the interactive shell instead of reading positions from stdin")
	fs.String("cpuprofile", "", "write cpu profile to file")

	v, err := load(fs, args, map[string]string{
		"table.log2":            "table-log2",
		"table.memory-fraction": "table-memory-fraction",
		"book.path":             "book",
		"search.weak":           "weak",
		"search.analyze":        "analyze",
		"search.timeout":        "timeout",
		"shell":                 "shell",
		"cpuprofile":            "cpuprofile",
	})
	if err != nil {
		return nil, err
	}

	c := &Solver{
		Logging:        logging(v),
		TableLog2:      v.GetInt("table.log2"),
		MemoryFraction: v.GetFloat64("table.memory-fraction"),
		BookPath:       v.GetString("book.path"),
		Weak:           v.GetBool("search.weak"),
		Analyze:        v.GetBool("search.analyze"),
		Timeout:        v.GetDuration("search.timeout"),
		Shell:          v.GetBool("shell"),
		CPUProfile:     v.GetString("cpuprofile"),
		Args:           fs.Args(),
	}
	if c.TableLog2 < engine.MinTableLog2 || c.TableLog2 > engine.MaxTableLog2 {
		return nil, fmt.Errorf("table.log2 %d out of range [%d, %d]", c.TableLog2, engine.MinTableLog2, engine.MaxTableLog2)
	}
	if c.MemoryFraction < 0 || c.MemoryFraction > 1 {
		return nil, fmt.Errorf("table.memory-fraction %g out of range [0, 1]", c.MemoryFraction)
	}
	if c.BookPath == "" {
		if c.BookPath, err = storage.DefaultBookPath(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadBookBuilder parses args for the book generator.
func LoadBookBuilder(args []string) (*BookBuilder, error) {
	fs := pflag.NewFlagSet("fourplay-book", pflag.ContinueOnError)
	fs.Int("depth", 8, "solve every position with at most this many moves")
	fs.Int("log2", 16, "book size, as log2 of the slot count")
	fs.Int("workers", 0, "parallel solvers (default GOMAXPROCS)")
	fs.Int("table-log2", 20, "transposition table size of each worker")
	fs.String("out", "", "book file to write (default <datadir>/7x6.book)")
	fs.String("db", "", "checkpoint database directory (default <datadir>/db)")
	fs.Bool("fresh", false, "ignore checkpointed scores")

	v, err := load(fs, args, map[string]string{
		"book.depth":   "depth",
		"book.log2":    "log2",
		"book.workers": "workers",
		"table.log2":   "table-log2",
		"book.out":     "out",
		"book.db":      "db",
		"book.fresh":   "fresh",
	})
	if err != nil {
		return nil, err
	}

	c := &BookBuilder{
		Logging:   logging(v),
		Depth:     v.GetInt("book.depth"),
		Log2:      v.GetInt("book.log2"),
		Workers:   v.GetInt("book.workers"),
		TableLog2: v.GetInt("table.log2"),
		Out:       v.GetString("book.out"),
		DB:        v.GetString("book.db"),
		Fresh:     v.GetBool("book.fresh"),
	}
	if c.Out == "" {
		if c.Out, err = storage.DefaultBookPath(); err != nil {
			return nil, err
		}
	}
	if c.DB == "" {
		if c.DB, err = storage.DatabaseDir(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// load registers the shared flags, parses args and binds every flag to its
// viper key.
func load(fs *pflag.FlagSet, args []string, keys map[string]string) (*viper.Viper, error) {
	fs.String("config", "", "YAML config file (default <datadir>/fourplay.yaml)")
	fs.String("log-level", "info", "log level: trace, debug, info, warn, error")
	fs.Bool("debug", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	keys["log.level"] = "log-level"
	keys["debug"] = "debug"

	v := viper.New()
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, err
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, fs.Lookup("config").Value.String()); err != nil {
		return nil, err
	}
	return v, nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
		return nil
	}

	if path = os.Getenv(envPrefix + "_CONFIG"); path != "" {
		return readConfigFile(v, path)
	}
	dataDir, err := storage.DataDir()
	if err != nil {
		return err
	}
	v.SetConfigName("fourplay")
	v.SetConfigType("yaml")
	v.AddConfigPath(dataDir)
	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

func logging(v *viper.Viper) Logging {
	return Logging{
		Level: v.GetString("log.level"),
		Debug: v.GetBool("debug"),
	}
}
