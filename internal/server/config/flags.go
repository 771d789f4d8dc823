package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/modzart/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string    HTTP bind address (e.g., ":8000")
//	-grpc string gRPC health bind address (e.g., ":50051")
//	-d string    PostgreSQL DSN
//	-s string    JWT HMAC secret key
//	-t int       access token validity, minutes
//	-m string    storage mode: local, s3 or minio
//	-l string    local storage root
//	-u string    S3 user / access key
//	-p string    S3 password / secret key
//	-b string    S3 bucket name
//	-g string    S3 region
//	-e string    S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-k string    VirusTotal API key
//	-q string    upload mode: sync or async
//	-w int       async upload workers
//
// os.Args is filtered with flagx.FilterArgs first so the -c/-config and -env
// flags owned by other layers do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-grpc", "-d", "-s", "-t", "-m", "-l", "-u", "-p", "-b", "-g", "-e", "-k", "-q", "-w",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "address and port to run gRPC health server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	fs.StringVar(&config.StorageMode, "m", config.StorageMode, "storage mode (local, s3, minio)")
	fs.StringVar(&config.LocalStoragePath, "l", config.LocalStoragePath, "local storage root")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.VirusTotalAPIKey, "k", config.VirusTotalAPIKey, "VirusTotal API key")
	fs.StringVar(&config.UploadMode, "q", config.UploadMode, "upload mode (sync, async)")
	fs.IntVar(&config.UploadWorkers, "w", config.UploadWorkers, "async upload workers")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
}
