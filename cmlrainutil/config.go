// Package cmlrainutil wires the flat key/value configuration described
// in this system's external interfaces to the typed config structs each
// component expects, and provides the cobra/viper plumbing shared by the
// two command-line entry points.
package cmlrainutil

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/spf13/cobra"

	"github.com/telcorain/cmlrain/extfilter"
	"github.com/telcorain/cmlrain/field"
	"github.com/telcorain/cmlrain/rainrate"
	"github.com/telcorain/cmlrain/scheduler"
	"github.com/telcorain/cmlrain/segment"
	"github.com/telcorain/cmlrain/tsdb"
)

// Cfg holds configuration information and the cobra command tree built
// on top of it.
type Cfg struct {
	*viper.Viper

	Root       *cobra.Command
	VersionCmd *cobra.Command
	RunCmd     *cobra.Command
	ServerCmd  *cobra.Command
	LinksCmd   *cobra.Command
}

// Version is set at build time via -ldflags.
var Version = "dev"

// InitializeConfig builds the Cfg, its cobra command tree and default
// option set. use/short name the root command ("cmlrain" or
// "cmlrain-server").
func InitializeConfig(use, short string) *Cfg {
	cfg := &Cfg{Viper: viper.New()}

	cfg.Root = &cobra.Command{
		Use:   use,
		Short: short,
		Long: `Derives spatial rainfall fields from commercial microwave link
attenuation. Configuration can be set with a config file (--config), with
command-line flags, or with environment variables of the form
'CMLRAIN_var', where 'var' is the name of the variable.`,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setConfig(cfg)
		},
	}
	cfg.Root.PersistentFlags().String("config", "", "path to a configuration file")
	cfg.Root.PersistentFlags().String("LogFile", "", "path to the log file (empty logs to stderr)")
	cfg.Root.PersistentFlags().String("logging.init_level", "info", "initial log level")
	cfg.BindPFlags(cfg.Root.PersistentFlags())

	cfg.VersionCmd = &cobra.Command{
		Use:               "version",
		Short:             "Print the version number",
		DisableAutoGenTag: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("cmlrain v%s\n", Version)
		},
	}
	cfg.Root.AddCommand(cfg.VersionCmd)

	cfg.SetEnvPrefix("CMLRAIN")
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	for k, v := range defaults() {
		cfg.SetDefault(k, v)
	}

	return cfg
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"mariadb.driver":                       "postgres",
		"mariadb.port":                         5432,
		"mariadb.timeout_seconds":              10,
		"influx2.old_new_border":                "",
		"realtime.retention_hours":             24,
		"realtime.http_enable":                 true,
		"realtime.http_address":                "0.0.0.0",
		"realtime.http_port":                   8080,
		"realtime.crop_to_polygon":             false,
		"directories.outputs_web":              "outputs_web",
		"directories.outputs_raw":              "outputs_raw",
		"directories.logs":                     "logs",
		"directories.ext_filter_cache":         "cache/extfilter",
		"rainfields.min_value":                 0.1,
		"rendering.x_min":                      12.0,
		"rendering.x_max":                      19.0,
		"rendering.y_min":                      48.5,
		"rendering.y_max":                      51.1,
		"external_filter.max_history_lookups":  3,
		"external_filter.default_return":       true,
		"logging.init_level":                   "info",
	}
}

func setConfig(cfg *Cfg) error {
	if cfgpath := cfg.GetString("config"); cfgpath != "" {
		cfg.SetConfigFile(cfgpath)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("cmlrain: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// MariaDBDSN builds the database/sql DSN for the metadata store from the
// `mariadb` configuration section. The driver name itself (postgres,
// mysql, or sqlite3 for local/CI deployments with no database server)
// is chosen by mariadb.driver and returned alongside the DSN.
func MariaDBDSN(v *viper.Viper) (driver, dsn string) {
	driver = v.GetString("mariadb.driver")
	host := v.GetString("mariadb.address")
	port := v.GetInt("mariadb.port")
	user := v.GetString("mariadb.user")
	pass := v.GetString("mariadb.pass")
	dbMeta := v.GetString("mariadb.db_metadata")

	switch driver {
	case "mysql":
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=%ds",
			user, pass, host, port, dbMeta, v.GetInt("mariadb.timeout_seconds"))
		return "mysql", dsn
	case "sqlite3":
		// dbMeta is a filesystem path for the sqlite driver, not a database
		// name on a server.
		return "sqlite3", dbMeta
	default:
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?connect_timeout=%d",
			user, pass, host, port, dbMeta, v.GetInt("mariadb.timeout_seconds"))
		return "postgres", dsn
	}
}

// Influx2Config builds a tsdb.Config from the `influx2` configuration
// section.
func Influx2Config(v *viper.Viper) (tsdb.Config, error) {
	border, err := parseBorderTimestamp(v.GetString("influx2.old_new_border"))
	if err != nil {
		return tsdb.Config{}, err
	}
	return tsdb.Config{
		URL:             v.GetString("influx2.url"),
		Token:           v.GetString("influx2.token"),
		Org:             v.GetString("influx2.org"),
		BucketOld:       v.GetString("influx2.bucket_old"),
		BucketNew:       v.GetString("influx2.bucket_new"),
		BucketOutputCML: v.GetString("influx2.bucket_out_cml"),
		OldNewBorder:    border,
	}, nil
}

func parseBorderTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, os.ExpandEnv(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("cmlrain: influx2.old_new_border must be RFC3339: %v", err)
	}
	return t, nil
}

// RainrateConfig builds a rainrate.Config, starting from
// rainrate.DefaultConfig and overriding with anything set under
// `rainrate`.
func RainrateConfig(v *viper.Viper) rainrate.Config {
	c := rainrate.DefaultConfig()
	c.StepMinutes = v.GetInt("rainrate.step_minutes")
	if c.StepMinutes == 0 {
		c.StepMinutes = 1
	}
	if v.IsSet("rainrate.tsl_max") {
		c.TSLMax = v.GetFloat64("rainrate.tsl_max")
	}
	if v.IsSet("rainrate.rsl_min") {
		c.RSLMin = v.GetFloat64("rainrate.rsl_min")
	}
	if v.IsSet("rainfields.min_value") {
		c.MinRainValue = v.GetFloat64("rainfields.min_value")
	}
	return c
}

// SegmentConfig builds a segment.Config from the `rainfields` section's
// segmentation mode.
func SegmentConfig(v *viper.Viper) segment.Config {
	mode := segment.ModeCentralPoint
	switch v.GetString("rainfields.segmentation") {
	case "uniform":
		mode = segment.ModeUniformLinear
	case "intersection":
		mode = segment.ModeIntersectionAware
	}
	return segment.Config{
		Mode:        mode,
		UniformSegM: v.GetFloat64("rainfields.segment_length_m"),
	}
}

// FieldBounds builds the interpolation grid bounds from the `rendering`
// configuration section.
func FieldBounds(v *viper.Viper) field.Bounds {
	return field.Bounds{
		XMin:       v.GetFloat64("rendering.x_min"),
		XMax:       v.GetFloat64("rendering.x_max"),
		YMin:       v.GetFloat64("rendering.y_min"),
		YMax:       v.GetFloat64("rendering.y_max"),
		Resolution: v.GetFloat64("rendering.resolution"),
	}
}

// ExtFilterConfig builds an extfilter.Config from the `external_filter`
// configuration section, or returns ok=false if no url is configured
// (the filter is optional).
func ExtFilterConfig(v *viper.Viper, cacheDir string) (cfg extfilter.Config, ok bool) {
	url := v.GetString("external_filter.url")
	if url == "" {
		return extfilter.Config{}, false
	}
	return extfilter.Config{
		URLPrefix:         url,
		CacheDir:          cacheDir,
		MaxHistoryLookups: v.GetInt("external_filter.max_history_lookups"),
		PixelThreshold:    v.GetInt("external_filter.pixel_threshold"),
		ImageBounds: extfilter.ImageBounds{
			XMin: v.GetFloat64("external_filter.bounds_x_min"),
			XMax: v.GetFloat64("external_filter.bounds_x_max"),
			YMin: v.GetFloat64("external_filter.bounds_y_min"),
			YMax: v.GetFloat64("external_filter.bounds_y_max"),
		},
		DefaultReturn: v.GetBool("external_filter.default_return"),
		ForwardLook:   v.GetBool("external_filter.forward_look"),
	}, true
}

// Directories holds the resolved output/log/cache paths of the
// `directories` configuration section.
type Directories struct {
	Outputs        string
	OutputsWeb     string
	OutputsRaw     string
	Logs           string
	ExtFilterCache string
}

// LoadDirectories reads and expands the `directories` configuration
// section, creating every directory that does not already exist.
func LoadDirectories(v *viper.Viper) (Directories, error) {
	d := Directories{
		Outputs:        os.ExpandEnv(v.GetString("directories.outputs")),
		OutputsWeb:     os.ExpandEnv(v.GetString("directories.outputs_web")),
		OutputsRaw:     os.ExpandEnv(v.GetString("directories.outputs_raw")),
		Logs:           os.ExpandEnv(v.GetString("directories.logs")),
		ExtFilterCache: os.ExpandEnv(v.GetString("directories.ext_filter_cache")),
	}
	for _, dir := range []string{d.Outputs, d.OutputsWeb, d.OutputsRaw, d.Logs, d.ExtFilterCache} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return d, fmt.Errorf("cmlrain: could not create directory %q: %v", dir, err)
		}
	}
	return d, nil
}

// ValidateRunParams adapts scheduler.ValidateRunParams's check to return
// a Go error, for use in a cobra RunE.
func ValidateRunParams(p scheduler.RunParams) error {
	if msg := scheduler.ValidateRunParams(p); msg != "" {
		return fmt.Errorf("cmlrain: %s", msg)
	}
	return nil
}
