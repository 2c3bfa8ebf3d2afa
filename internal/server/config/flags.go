package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/tokenbank/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-d string   database DSN
//	-s string   master secret key
//	-m int      magic link max age, seconds
//	-t int      passport validity, minutes
//	-l int      passport budget cap
//	-q int      passport budget divisor
//	-w string   public base URL
//	-k string   service token
//	-n string   email provider (resend, sendgrid)
//	-x string   email provider API key
//	-f string   email sender address
//	-r string   Redis address for the login throttle
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-v string   log level
//
// Only flags listed here are kept from os.Args (see flagx.FilterArgs), so the
// -c/-config/-env file flags never reach this parser.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-m", "-t", "-l", "-q", "-w", "-k",
		"-n", "-x", "-f", "-r", "-u", "-p", "-b", "-g", "-e", "-v",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	magicLinkMaxAge := fs.Int("m", int(config.MagicLinkMaxAge.Seconds()), "magic link max age (in seconds)")
	passportValidity := fs.Int("t", int(config.PassportValidityDuration.Minutes()), "passport validity (in minutes)")

	fs.Int64Var(&config.PassportBudgetCap, "l", config.PassportBudgetCap, "passport budget cap")
	fs.Int64Var(&config.PassportBudgetDivisor, "q", config.PassportBudgetDivisor, "passport budget divisor")
	fs.StringVar(&config.PublicURL, "w", config.PublicURL, "public base URL")
	fs.StringVar(&config.ServiceToken, "k", config.ServiceToken, "service token")
	fs.StringVar(&config.EmailProvider, "n", config.EmailProvider, "email provider")
	fs.StringVar(&config.EmailAPIKey, "x", config.EmailAPIKey, "email provider API key")
	fs.StringVar(&config.EmailSender, "f", config.EmailSender, "email sender")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.MagicLinkMaxAge = time.Duration(*magicLinkMaxAge) * time.Second
	config.PassportValidityDuration = time.Duration(*passportValidity) * time.Minute
}
