package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	charsetconverter "github.com/always-cache/charset-converter"
	"github.com/always-cache/charset-converter/history"
	responsetransformer "github.com/always-cache/charset-converter/pkg/response-transformer"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// path under which the admin API is served, next to the proxied site
const adminPath = "/.charset-converter"

var (
	// CLI flags
	portFlag           int
	originFlag         string
	addrFlag           string
	hostFlag           string
	dbFilenameFlag     string
	configFilenameFlag string
	rewriteOriginFlag  bool
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&originFlag, "origin", "", "Origin URL to proxy to (overrides addr and host)")
	flag.StringVar(&addrFlag, "addr", "", "Origin IP address to proxy to")
	flag.StringVar(&hostFlag, "host", "", "Hostname of origin")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (default 8080)")
	flag.StringVar(&dbFilenameFlag, "db", "", "History DB file name (use 'memory' for in-memory db, default history.db)")
	flag.StringVar(&configFilenameFlag, "config", "", "YAML config file")
	flag.BoolVar(&rewriteOriginFlag, "rewrite-origin", false, "Replace the origin host with the proxy address in GET responses")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	// flags take precedence over the config file
	config := Config{
		Origin: originFlag,
		Addr:   addrFlag,
		Host:   hostFlag,
		Port:   portFlag,
		DB:     dbFilenameFlag,
	}
	if configFilenameFlag != "" {
		fileConfig, err := getConfig(configFilenameFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not read config file")
		}
		config = config.merge(fileConfig)
	}
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.DB == "" {
		config.DB = "history.db"
	}

	// set up sqlite memory provider
	dbFilename := config.DB
	if dbFilename == "memory" {
		dbFilename = "file::memory:?cache=shared"
	}
	store, err := history.NewSQLiteStore(dbFilename)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open history DB")
	}
	defer store.Close()

	proxyConfig := charsetconverter.Config{
		Logger:  &log.Logger,
		History: store,
		Rules:   config.Rules,
	}

	// get the downstream server address
	if config.Origin != "" {
		originUrl, err := url.Parse(config.Origin)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not parse url")
		}
		proxyConfig.OriginURL = *originUrl
	} else if config.Addr != "" {
		originUrl, err := url.Parse("https://" + config.Addr)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not parse url")
		}
		proxyConfig.OriginURL = *originUrl
		proxyConfig.OriginHost = config.Host
	} else {
		log.Fatal().Msg("Please specify origin")
	}

	if rewriteOriginFlag {
		originHost := proxyConfig.OriginURL.Host
		if proxyConfig.OriginHost != "" {
			originHost = proxyConfig.OriginHost
		}
		proxyConfig.Rules = append(proxyConfig.Rules, responsetransformer.Rule{
			Replace: []responsetransformer.Replacement{
				{From: originHost, To: fmt.Sprintf("localhost:%d", config.Port)},
			},
		})
	}

	proxy := charsetconverter.CreateProxy(proxyConfig)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Mount(adminPath, charsetconverter.NewAdminRouter(store))
	r.Handle("/*", proxy)

	log.Info().Msgf("Proxying port %v to %s (with hostname '%s')", config.Port, proxyConfig.OriginURL.String(), proxyConfig.OriginHost)
	log.Info().Msgf("History available at %s/history", adminPath)
	err = http.ListenAndServe(fmt.Sprintf(":%d", config.Port), r)

	if err != nil {
		panic(err)
	}
}
