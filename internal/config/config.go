// Package config holds the command-line configuration groups shared by the
// ghcnclimate subcommands. The structs are embedded into the kong CLI.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lox/ghcnclimate/internal/archive"
	"github.com/lox/ghcnclimate/internal/httputil"
	"github.com/lox/ghcnclimate/internal/pipeline"
)

// Archive selects and configures the remote the fetcher pulls from.
type Archive struct {
	Transport   string        `help:"Archive transport (${enum})." enum:"ftp,https,s3" default:"ftp" env:"GHCN_TRANSPORT"`
	FTPHost     string        `name:"ftp-host" help:"FTP server host:port." default:"ftp.ncdc.noaa.gov:21" env:"GHCN_FTP_HOST"`
	FTPRoot     string        `name:"ftp-root" help:"Archive directory on the FTP server." default:"/pub/data/ghcn/daily"`
	HTTPSBase   string        `name:"https-base" help:"Base URL of the HTTPS mirror." default:"https://www.ncei.noaa.gov/pub/data/ghcn/daily" env:"GHCN_HTTPS_BASE"`
	S3Bucket    string        `name:"s3-bucket" help:"Open-data bucket holding the archive." default:"noaa-ghcn-pds" env:"GHCN_S3_BUCKET"`
	S3Region    string        `name:"s3-region" help:"Region of the bucket." default:"us-east-1" env:"GHCN_S3_REGION"`
	S3AccessKey string        `name:"s3-access-key" help:"Access key; requests are unsigned when empty." env:"AWS_ACCESS_KEY_ID"`
	S3SecretKey string        `name:"s3-secret-key" help:"Secret key paired with --s3-access-key." env:"AWS_SECRET_ACCESS_KEY"`
	Timeout     time.Duration `help:"Timeout for a single remote transfer." default:"2m"`
	Rate        float64       `help:"Remote transfers per second." default:"2"`
	Burst       int           `help:"Transfers allowed in a burst." default:"1"`
}

func (a Archive) Validate() error {
	switch a.Transport {
	case "ftp":
		if a.FTPHost == "" {
			return fmt.Errorf("--ftp-host is required for the ftp transport")
		}
	case "https":
		if !strings.HasPrefix(a.HTTPSBase, "https://") && !strings.HasPrefix(a.HTTPSBase, "http://") {
			return fmt.Errorf("invalid --https-base %q", a.HTTPSBase)
		}
	case "s3":
		if a.S3Bucket == "" {
			return fmt.Errorf("--s3-bucket is required for the s3 transport")
		}
		if a.S3AccessKey != "" && a.S3SecretKey == "" {
			return fmt.Errorf("--s3-secret-key is required with --s3-access-key")
		}
	default:
		return fmt.Errorf("unknown transport %q", a.Transport)
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive, got %s", a.Timeout)
	}
	if a.Rate <= 0 {
		return fmt.Errorf("--rate must be positive, got %v", a.Rate)
	}
	if a.Burst < 1 {
		return fmt.Errorf("--burst must be at least 1, got %d", a.Burst)
	}
	return nil
}

func (a Archive) NewTransport() (archive.Transport, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	switch a.Transport {
	case "https":
		return archive.NewHTTPTransport(a.HTTPSBase, httputil.NewClient(a.Timeout)), nil
	case "s3":
		return archive.NewS3Transport(a.S3Bucket, a.S3Region, a.S3AccessKey, a.S3SecretKey), nil
	default:
		return archive.NewFTPTransport(a.FTPHost, a.FTPRoot, a.Timeout), nil
	}
}

func (a Archive) FetcherOptions() []archive.Option {
	return []archive.Option{archive.WithRateLimit(a.Rate, a.Burst)}
}

// Query holds the station selection parameters. The defaults search the
// Santa Cruz mountains.
type Query struct {
	Lat      float64 `help:"Reference latitude in decimal degrees." default:"37.1427"`
	Lon      float64 `help:"Reference longitude in decimal degrees." default:"-121.9725"`
	RadiusKM float64 `name:"radius-km" help:"Search radius in kilometres." default:"50"`
	MinYear  int     `name:"min-year" help:"Coverage must start on or before this year." default:"2015"`
	MaxYear  int     `name:"max-year" help:"Coverage must end on or after this year." default:"2022"`
	Element  string  `help:"Element whose coverage window is checked." default:"TMIN"`
	State    string  `help:"Only keep stations in this US state."`
}

func (q Query) Pipeline() pipeline.Query {
	return pipeline.Query{
		Latitude:  q.Lat,
		Longitude: q.Lon,
		RadiusKM:  q.RadiusKM,
		MinYear:   q.MinYear,
		MaxYear:   q.MaxYear,
		Element:   strings.ToUpper(q.Element),
		State:     strings.ToUpper(q.State),
	}
}

func (q Query) Validate() error {
	return q.Pipeline().Validate()
}

type Log struct {
	Level  string `name:"log-level" help:"Log level (${enum})." enum:"debug,info,warn,error" default:"info" env:"LOG_LEVEL"`
	Format string `name:"log-format" help:"Log format (${enum})." enum:"text,json" default:"text" env:"LOG_FORMAT"`
}

// NewLogger builds the process logger writing to w.
func (l Log) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", l.Format)
}
