package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/modzart/internal/flagx"
	"github.com/dmitrijs2005/modzart/internal/timex"
)

// JsonConfig is the on-disk shape of the optional configuration file.
// Duration fields use timex.Duration, so both "20s" and integer nanoseconds
// are accepted. After unmarshalling, non-zero fields are copied into Config.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	LogLevel                    string         `json:"log_level"`
	AllowedOrigins              []string       `json:"allowed_origins"`

	StorageMode      string         `json:"storage_mode"`
	LocalStoragePath string         `json:"local_storage_path"`
	PublicBaseURL    string         `json:"public_base_url"`
	TempUploadDir    string         `json:"temp_upload_dir"`
	DownloadURLTTL   timex.Duration `json:"download_url_ttl"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	VirusTotalAPIKey  string         `json:"virustotal_api_key"`
	VirusTotalBaseURL string         `json:"virustotal_base_url"`
	ScanDisabled      *bool          `json:"scan_disabled"`
	ScanSubmitTimeout timex.Duration `json:"scan_submit_timeout"`
	ScanPollTimeout   timex.Duration `json:"scan_poll_timeout"`
	ScanPollAttempts  int            `json:"scan_poll_attempts"`
	ScanPollInterval  timex.Duration `json:"scan_poll_interval"`

	UploadMode      string `json:"upload_mode"`
	UploadWorkers   int    `json:"upload_workers"`
	UploadQueueSize int    `json:"upload_queue_size"`
	MaxUploadSize   int64  `json:"max_upload_size"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag into config. Without the flag nothing is loaded. An unreadable
// file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setString(&config.LogLevel, c.LogLevel)
	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}

	setString(&config.StorageMode, c.StorageMode)
	setString(&config.LocalStoragePath, c.LocalStoragePath)
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	setString(&config.TempUploadDir, c.TempUploadDir)
	setDuration(&config.DownloadURLTTL, c.DownloadURLTTL)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	setString(&config.VirusTotalAPIKey, c.VirusTotalAPIKey)
	setString(&config.VirusTotalBaseURL, c.VirusTotalBaseURL)
	if c.ScanDisabled != nil {
		config.ScanDisabled = *c.ScanDisabled
	}
	setDuration(&config.ScanSubmitTimeout, c.ScanSubmitTimeout)
	setDuration(&config.ScanPollTimeout, c.ScanPollTimeout)
	if c.ScanPollAttempts != 0 {
		config.ScanPollAttempts = c.ScanPollAttempts
	}
	setDuration(&config.ScanPollInterval, c.ScanPollInterval)

	setString(&config.UploadMode, c.UploadMode)
	if c.UploadWorkers != 0 {
		config.UploadWorkers = c.UploadWorkers
	}
	if c.UploadQueueSize != 0 {
		config.UploadQueueSize = c.UploadQueueSize
	}
	if c.MaxUploadSize != 0 {
		config.MaxUploadSize = c.MaxUploadSize
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
