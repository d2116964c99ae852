// Package config resolves server settings from flags, PLANTDOC_* environment
// variables and an optional config file.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys, also used as flag names.
const (
	KeyPort           = "port"
	KeyModelPath      = "model.path"
	KeyModelMetadata  = "model.metadata"
	KeyORTLibrary     = "model.ort-library"
	KeyIntraOpThreads = "model.intra-op-threads"
	KeyNumClasses     = "model.num-classes"
	KeyDiseaseCSV     = "data.disease"
	KeySupplementCSV  = "data.supplement"
	KeyEncoding       = "data.encoding"
	KeyStrictAlign    = "data.strict-alignment"
	KeyMaxUpload      = "upload.max-bytes"
	KeyCORSOrigins    = "cors.origins"
	KeyLogLevel       = "log.level"
	KeyLogFormat      = "log.format"
	KeyLogFile        = "log.file"
	KeyLogMaxSizeMB   = "log.max-size-mb"
	KeyLogMaxBackups  = "log.max-backups"
	KeyLogMaxAgeDays  = "log.max-age-days"
)

const (
	DefaultPort       = 5000
	DefaultNumClasses = 39
	DefaultMaxUpload  = 10 << 20
	EnvPrefix         = "PLANTDOC"
)

type Config struct {
	Port   int
	Model  ModelConfig
	Data   DataConfig
	Upload UploadConfig
	CORS   CORSConfig
	Log    LogConfig
}

type ModelConfig struct {
	Path           string
	MetadataPath   string
	ORTLibrary     string
	IntraOpThreads int
	NumClasses     int
}

type DataConfig struct {
	DiseasePath     string
	SupplementPath  string
	Encoding        string
	StrictAlignment bool
}

type UploadConfig struct {
	MaxBytes int64
}

type CORSConfig struct {
	Origins []string
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyModelPath, "models/plant_disease_model.onnx")
	v.SetDefault(KeyModelMetadata, "")
	v.SetDefault(KeyORTLibrary, "")
	v.SetDefault(KeyIntraOpThreads, 0)
	v.SetDefault(KeyNumClasses, DefaultNumClasses)
	v.SetDefault(KeyDiseaseCSV, "disease_info.csv")
	v.SetDefault(KeySupplementCSV, "supplement_info.csv")
	v.SetDefault(KeyEncoding, "windows-1252")
	v.SetDefault(KeyStrictAlign, false)
	v.SetDefault(KeyMaxUpload, DefaultMaxUpload)
	v.SetDefault(KeyCORSOrigins, []string{"*"})
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSizeMB, 100)
	v.SetDefault(KeyLogMaxBackups, 3)
	v.SetDefault(KeyLogMaxAgeDays, 28)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags exposes every key as a flag on fs and binds it to v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.Int(KeyPort, DefaultPort, "HTTP listen port")
	fs.String(KeyModelPath, v.GetString(KeyModelPath), "ONNX weights of the plant disease classifier")
	fs.String(KeyModelMetadata, "", "optional JSON sidecar with the model's class list and shapes")
	fs.String(KeyORTLibrary, "", "path to the onnxruntime shared library")
	fs.Int(KeyIntraOpThreads, 0, "onnxruntime intra-op threads, 0 for the runtime default")
	fs.Int(KeyNumClasses, DefaultNumClasses, "number of disease classes the model predicts")
	fs.String(KeyDiseaseCSV, v.GetString(KeyDiseaseCSV), "disease table (CSV)")
	fs.String(KeySupplementCSV, v.GetString(KeySupplementCSV), "supplement table (CSV)")
	fs.String(KeyEncoding, v.GetString(KeyEncoding), "character encoding of both tables: windows-1252 or utf-8")
	fs.Bool(KeyStrictAlign, false, "fail startup when the supplement table's disease_name column disagrees with the disease table")
	fs.Int64(KeyMaxUpload, DefaultMaxUpload, "maximum accepted upload size in bytes")
	fs.StringSlice(KeyCORSOrigins, []string{"*"}, "allowed CORS origins")
	fs.String(KeyLogLevel, "info", "log level: debug, info, warn, error")
	fs.String(KeyLogFormat, "json", "log format: json or console")
	fs.String(KeyLogFile, "", "also write logs to this file, rotated by size")

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if bindErr := v.BindPFlag(f.Name, f); bindErr != nil && err == nil {
			err = errors.Wrapf(bindErr, "bind flag %s", f.Name)
		}
	})
	return err
}

// ReadFile merges a config file into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	return nil
}

// Load snapshots v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port: v.GetInt(KeyPort),
		Model: ModelConfig{
			Path:           v.GetString(KeyModelPath),
			MetadataPath:   v.GetString(KeyModelMetadata),
			ORTLibrary:     v.GetString(KeyORTLibrary),
			IntraOpThreads: v.GetInt(KeyIntraOpThreads),
			NumClasses:     v.GetInt(KeyNumClasses),
		},
		Data: DataConfig{
			DiseasePath:     v.GetString(KeyDiseaseCSV),
			SupplementPath:  v.GetString(KeySupplementCSV),
			Encoding:        v.GetString(KeyEncoding),
			StrictAlignment: v.GetBool(KeyStrictAlign),
		},
		Upload: UploadConfig{MaxBytes: v.GetInt64(KeyMaxUpload)},
		CORS:   CORSConfig{Origins: v.GetStringSlice(KeyCORSOrigins)},
		Log: LogConfig{
			Level:      v.GetString(KeyLogLevel),
			Format:     v.GetString(KeyLogFormat),
			File:       v.GetString(KeyLogFile),
			MaxSizeMB:  v.GetInt(KeyLogMaxSizeMB),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
			MaxAgeDays: v.GetInt(KeyLogMaxAgeDays),
		},
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, errors.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.Model.NumClasses <= 0 {
		return nil, errors.Errorf("invalid class count %d", cfg.Model.NumClasses)
	}
	if cfg.Upload.MaxBytes <= 0 {
		return nil, errors.Errorf("invalid upload limit %d", cfg.Upload.MaxBytes)
	}
	if cfg.Model.Path == "" {
		return nil, errors.New("model path is required")
	}
	return cfg, nil
}
