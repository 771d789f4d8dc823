package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/modzart/internal/flagx"
	"github.com/joho/godotenv"
)

// defaultEnvFile is read when present and no -env flag is given.
const defaultEnvFile = ".env"

// parseEnv loads a dotenv file into the process environment (without
// overriding variables that are already set) and copies the recognised
// variables into config. Empty variables are ignored.
//
// Recognised variables:
//
//	HTTP_ADDRESS, GRPC_ADDRESS, DATABASE_URL, SECRET_KEY,
//	ACCESS_TOKEN_EXPIRE_MINUTES, LOG_LEVEL, ALLOWED_ORIGINS (comma separated),
//	STORAGE_MODE, LOCAL_STORAGE_PATH, PUBLIC_BASE_URL, TEMP_UPLOAD_DIR,
//	S3_BUCKET_NAME, S3_REGION, S3_ENDPOINT, AWS_ACCESS_KEY_ID,
//	AWS_SECRET_ACCESS_KEY, VIRUS_TOTAL_API_KEY, SCAN_DISABLED,
//	SCAN_POLL_ATTEMPTS, SCAN_POLL_INTERVAL, UPLOAD_MODE, UPLOAD_WORKERS
//
// A malformed numeric or boolean value panics, like a malformed JSON file.
func parseEnv(config *Config) {
	file := flagx.EnvFileFlags()
	explicit := file != ""
	if !explicit {
		file = defaultEnvFile
	}

	if err := godotenv.Load(file); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			panic(fmt.Errorf("load env file %s: %w", file, err))
		}
	}

	envString("HTTP_ADDRESS", &config.EndpointAddrHTTP)
	envString("GRPC_ADDRESS", &config.EndpointAddrGRPC)
	envString("DATABASE_URL", &config.DatabaseDSN)
	envString("SECRET_KEY", &config.SecretKey)
	if v := os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); v != "" {
		config.AccessTokenValidityDuration = time.Duration(mustAtoi("ACCESS_TOKEN_EXPIRE_MINUTES", v)) * time.Minute
	}
	envString("LOG_LEVEL", &config.LogLevel)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		config.AllowedOrigins = splitList(v)
	}

	envString("STORAGE_MODE", &config.StorageMode)
	envString("LOCAL_STORAGE_PATH", &config.LocalStoragePath)
	envString("PUBLIC_BASE_URL", &config.PublicBaseURL)
	envString("TEMP_UPLOAD_DIR", &config.TempUploadDir)

	envString("S3_BUCKET_NAME", &config.S3Bucket)
	envString("S3_REGION", &config.S3Region)
	envString("S3_ENDPOINT", &config.S3BaseEndpoint)
	envString("AWS_ACCESS_KEY_ID", &config.S3RootUser)
	envString("AWS_SECRET_ACCESS_KEY", &config.S3RootPassword)

	envString("VIRUS_TOTAL_API_KEY", &config.VirusTotalAPIKey)
	if v := os.Getenv("SCAN_DISABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(fmt.Errorf("SCAN_DISABLED: %w", err))
		}
		config.ScanDisabled = b
	}
	if v := os.Getenv("SCAN_POLL_ATTEMPTS"); v != "" {
		config.ScanPollAttempts = mustAtoi("SCAN_POLL_ATTEMPTS", v)
	}
	if v := os.Getenv("SCAN_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(fmt.Errorf("SCAN_POLL_INTERVAL: %w", err))
		}
		config.ScanPollInterval = d
	}

	envString("UPLOAD_MODE", &config.UploadMode)
	if v := os.Getenv("UPLOAD_WORKERS"); v != "" {
		config.UploadWorkers = mustAtoi("UPLOAD_WORKERS", v)
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func mustAtoi(key, v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Errorf("%s: %w", key, err))
	}
	return n
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
