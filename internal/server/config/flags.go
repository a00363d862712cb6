package config

import (
	"flag"
	"strings"
	"time"

	"github.com/dmitrijs2005/utask/internal/flagx"
)

var knownFlags = []string{
	"-a", "-m", "-d", "-s", "-t", "-r", "-w", "-n", "-k", "-x", "-l",
	"-u", "-p", "-b", "-g", "-e",
}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   metrics HTTP bind address
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-w int      confirmation token validity, hours
//	-n string   notifier backend (log, kafka, s3)
//	-k string   comma separated Kafka brokers
//	-x string   Redis address for shared login throttling
//	-l string   log level
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint
//
// Unknown flags are filtered out first with flagx.FilterArgs.
func parseFlags(config *Config, osArgs []string) {
	args := flagx.FilterArgs(osArgs, knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port to serve metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessMinutes := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshMinutes := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	fs.IntVar(&config.ConfirmationTokenValidHours, "w", config.ConfirmationTokenValidHours, "confirmation token validity (in hours)")

	fs.StringVar(&config.NotifierBackend, "n", config.NotifierBackend, "notifier backend")
	brokers := fs.String("k", strings.Join(config.KafkaBrokers, ","), "kafka brokers")
	fs.StringVar(&config.RedisAddr, "x", config.RedisAddr, "redis address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessMinutes) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshMinutes) * time.Minute
	config.KafkaBrokers = splitList(*brokers)
}
