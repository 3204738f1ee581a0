package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/DavidGamba/go-getoptions"
	"github.com/cyverse-de/configurate"
	"github.com/cyverse-de/go-mod/otelutils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/scholarship-portal/notification-service/api"
	"github.com/scholarship-portal/notification-service/common"
	"github.com/scholarship-portal/notification-service/db"
	"github.com/scholarship-portal/notification-service/handlers"
	"github.com/scholarship-portal/notification-service/handlerset"
	"github.com/scholarship-portal/notification-service/notifications"
)

const serviceName = "notification-service"

var version = "dev"

var log = logrus.WithFields(logrus.Fields{"service": serviceName})

// defaultConfig contains the default configuration settings. Every setting can be overridden in the configuration
// file or by an environment variable such as DB_URI.
const defaultConfig = `
db:
  uri: postgres://scholarships@localhost:5432/scholarships?sslmode=disable
  init-schema: false
listen:
  port: 8080
amqp:
  uri: ""
  exchange:
    name: scholarships
    type: topic
  queue: scholarship_notifications
log:
  level: info
`

// commandLineOptionValues represents the values of the command-line options that were passed on the command line when
// this service was invoked.
type commandLineOptionValues struct {
	Config string
	Port   int
}

func parseCommandLine() *commandLineOptionValues {
	optionValues := &commandLineOptionValues{}
	opt := getoptions.New()

	// Default option values.
	defaultConfigPath := "/etc/scholarships/notifications.yml"

	// Define the command-line options.
	opt.Bool("help", false, opt.Alias("h", "?"))
	opt.StringVar(&optionValues.Config, "config", defaultConfigPath,
		opt.Alias("c"),
		opt.Description("the path to the configuration file"))
	opt.IntVar(&optionValues.Port, "port", 0,
		opt.Alias("p"),
		opt.Description("the port to listen on, overriding listen.port"))

	// Parse the command line, handling requests for help and usage errors.
	_, err := opt.Parse(os.Args[1:])
	if opt.Called("help") {
		fmt.Fprint(os.Stderr, opt.Help())
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", err)
		fmt.Fprint(os.Stderr, opt.Help(getoptions.HelpSynopsis))
		os.Exit(1)
	}

	return optionValues
}

// initLogging configures the global logger.
func initLogging(cfg *viper.Viper) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.GetString("log.level"))
	if err != nil {
		log.Warnf("invalid log level %q; using info", cfg.GetString("log.level"))
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// amqpSettings extracts the AMQP settings from the configuration.
func amqpSettings(cfg *viper.Viper) *common.AMQPSettings {
	return &common.AMQPSettings{
		URI:          cfg.GetString("amqp.uri"),
		ExchangeName: cfg.GetString("amqp.exchange.name"),
		ExchangeType: cfg.GetString("amqp.exchange.type"),
		QueueName:    cfg.GetString("amqp.queue"),
	}
}

func main() {
	// Parse the command-line.
	optionValues := parseCommandLine()

	// Read in the configuration file.
	cfg, err := configurate.InitDefaults(optionValues.Config, defaultConfig)
	if err != nil {
		log.Fatal(err)
	}
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	cfg.AutomaticEnv()

	// Initialize logging.
	initLogging(cfg)

	// Initialize tracing.
	var tracerCtx, cancel = context.WithCancel(context.Background())
	defer cancel()
	shutdown := otelutils.TracerProviderFromEnv(tracerCtx, serviceName, func(e error) { log.Fatal(e) })
	defer shutdown()

	// Connect to the database.
	dbconn, err := db.InitDatabase("postgres", cfg.GetString("db.uri"))
	if err != nil {
		log.Fatal(err)
	}
	defer dbconn.Close()

	if cfg.GetBool("db.init-schema") {
		if err = db.InitSchema(context.Background(), dbconn); err != nil {
			log.Fatal(err)
		}
	}

	store := db.NewStore(dbconn)
	opts := []notifications.Option{}

	// Connect to the AMQP exchange if it's configured.
	var handlerSet *handlerset.HandlerSet
	settings := amqpSettings(cfg)
	if settings.Enabled() {
		handlerSet, err = handlerset.New(settings)
		if err != nil {
			log.Fatal(err)
		}
		defer handlerSet.Close()
		opts = append(opts, notifications.WithPublisher(handlerSet))
	} else {
		log.Info("amqp.uri is not set; workflow events will not be consumed")
	}

	svc := notifications.New(store, store, opts...)

	// Start consuming workflow events.
	if handlerSet != nil {
		go handlerSet.Listen(handlers.InitMessageHandlers(svc))
	}

	// Start the HTTP server.
	port := cfg.GetInt("listen.port")
	if optionValues.Port != 0 {
		port = optionValues.Port
	}
	app := api.New(svc, serviceName, version)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("listening on port %d", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("server forced to shut down: %s", err)
	}
}
