// Package config loads gateway settings from command-line flags and
// environment variables, the way cmd/server/main.go's teacher predecessor
// combined flag.String with os.Getenv for deployment-time plumbing.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Settings holds every tunable named in the options table: serial
// connection, bus timing/batching, and the HTTP binding.
type Settings struct {
	SerialPort string
	SerialBaud int

	DestinationAddress uint16
	PollInterval       time.Duration
	RequestTimeout     time.Duration
	ParamsPerRequest   int
	TokenRequired      bool
	TokenTimeout       time.Duration

	APIHost string
	APIPort int
}

// Defaults returns the documented option defaults.
func Defaults() Settings {
	return Settings{
		SerialPort:         "/dev/ttyUSB0",
		SerialBaud:         115200,
		DestinationAddress: 1,
		PollInterval:       10 * time.Second,
		RequestTimeout:     1500 * time.Millisecond,
		ParamsPerRequest:   100,
		TokenRequired:      true,
		TokenTimeout:       0,
		APIHost:            "0.0.0.0",
		APIPort:            8000,
	}
}

// Load parses flags (taking precedence) over environment variables (taking
// precedence over Defaults()). fs lets callers supply their own FlagSet for
// testing; pass flag.CommandLine for the real process.
func Load(fs *flag.FlagSet, args []string) (Settings, error) {
	d := Defaults()
	env := applyEnv(d)

	port := fs.String("serial-port", env.SerialPort, "serial device path (env GM3_SERIAL_PORT)")
	baud := fs.Int("serial-baud", env.SerialBaud, "serial baud rate (env GM3_SERIAL_BAUD)")
	dest := fs.Uint("destination-address", uint(env.DestinationAddress), "controller bus address (env GM3_DESTINATION_ADDRESS)")
	pollSeconds := fs.Float64("poll-interval", env.PollInterval.Seconds(), "seconds between poll cycles (env GM3_POLL_INTERVAL)")
	requestTimeoutSeconds := fs.Float64("request-timeout", env.RequestTimeout.Seconds(), "seconds to wait for one bus reply (env GM3_REQUEST_TIMEOUT)")
	paramsPerRequest := fs.Int("params-per-request", env.ParamsPerRequest, "max parameters per GET_PARAMS batch (env GM3_PARAMS_PER_REQUEST)")
	tokenRequired := fs.Bool("token-required", env.TokenRequired, "wait indefinitely for the bus token (env GM3_TOKEN_REQUIRED)")
	tokenTimeoutSeconds := fs.Float64("token-timeout", env.TokenTimeout.Seconds(), "seconds to wait for the token when token-required is false (env GM3_TOKEN_TIMEOUT)")
	apiHost := fs.String("api-host", env.APIHost, "HTTP bind host (env GM3_API_HOST)")
	apiPort := fs.Int("api-port", env.APIPort, "HTTP bind port (env GM3_API_PORT)")

	if err := fs.Parse(args); err != nil {
		return Settings{}, err
	}

	return Settings{
		SerialPort:         *port,
		SerialBaud:         *baud,
		DestinationAddress: uint16(*dest),
		PollInterval:       secondsToDuration(*pollSeconds),
		RequestTimeout:     secondsToDuration(*requestTimeoutSeconds),
		ParamsPerRequest:   *paramsPerRequest,
		TokenRequired:      *tokenRequired,
		TokenTimeout:       secondsToDuration(*tokenTimeoutSeconds),
		APIHost:            *apiHost,
		APIPort:            *apiPort,
	}, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// applyEnv overlays recognized GM3_* environment variables onto d, leaving
// unset or unparseable variables at their existing value.
func applyEnv(d Settings) Settings {
	if v := os.Getenv("GM3_SERIAL_PORT"); v != "" {
		d.SerialPort = v
	}
	if v, ok := envInt("GM3_SERIAL_BAUD"); ok {
		d.SerialBaud = v
	}
	if v, ok := envInt("GM3_DESTINATION_ADDRESS"); ok {
		d.DestinationAddress = uint16(v)
	}
	if v, ok := envFloat("GM3_POLL_INTERVAL"); ok {
		d.PollInterval = secondsToDuration(v)
	}
	if v, ok := envFloat("GM3_REQUEST_TIMEOUT"); ok {
		d.RequestTimeout = secondsToDuration(v)
	}
	if v, ok := envInt("GM3_PARAMS_PER_REQUEST"); ok {
		d.ParamsPerRequest = v
	}
	if v, ok := envBool("GM3_TOKEN_REQUIRED"); ok {
		d.TokenRequired = v
	}
	if v, ok := envFloat("GM3_TOKEN_TIMEOUT"); ok {
		d.TokenTimeout = secondsToDuration(v)
	}
	if v := os.Getenv("GM3_API_HOST"); v != "" {
		d.APIHost = v
	}
	if v, ok := envInt("GM3_API_PORT"); ok {
		d.APIPort = v
	}
	return d
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	n, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return n, true
}
