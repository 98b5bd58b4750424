package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/youthforge/forge/internal/flagx"
	"github.com/youthforge/forge/internal/timex"
)

// JsonConfig is the intermediate DTO used only for reading JSON config
// files. Interval fields use timex.Duration so both "24h" strings and
// integer nanoseconds parse; after unmarshalling the values are copied into
// the runtime Config.
type JsonConfig struct {
	ListenAddr            string         `json:"listen_addr"`
	Backend               string         `json:"backend"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	SeedDemoData          *bool          `json:"seed_demo_data"`
	S3RootUser            string         `json:"s3_root_user"`
	S3RootPassword        string         `json:"s3_root_password"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file named by the -c
// or -config flags. When neither flag is set no file is loaded. Only fields
// present in the file override the config; reading or parsing failures
// panic, since running with a half-applied config file is worse than not
// starting.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.ListenAddr != "" {
		config.ListenAddr = c.ListenAddr
	}
	if c.Backend != "" {
		config.Backend = c.Backend
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.TokenValidityDuration.Duration != 0 {
		config.TokenValidityDuration = time.Duration(c.TokenValidityDuration.Duration)
	}
	if c.SeedDemoData != nil {
		config.SeedDemoData = *c.SeedDemoData
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}
