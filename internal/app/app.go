package app

import (
	"os"
	"os/signal"
	"syscall"

	runtime "github.com/banzaicloud/logrus-runtime-formatter"
	"github.com/bombsimon/logrusr/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"github.com/metal-toolbox/regiongen/internal/model"
)

// App holds attributes for the regiongen application
type App struct {
	// Viper loads configuration parameters.
	v *viper.Viper
	// regiongen configuration.
	Config *model.Config
	// TermCh is the channel to terminate the app based on a signal
	TermCh chan os.Signal
	// Logger is the app logger
	Logger *logrus.Logger
}

// New returns a new instance of the regiongen app
//
// envFile, when set, is loaded into the process environment before the configuration is read.
func New(cfgFile, envFile string, loglevel int) (*App, error) {
	app := &App{
		v:      viper.New(),
		Config: &model.Config{File: cfgFile},
		Logger: logrus.New(),
		TermCh: make(chan os.Signal, 1),
	}

	if err := app.LoadConfiguration(cfgFile, envFile); err != nil {
		return nil, err
	}

	// the --log-level flag takes precedence over configuration
	if loglevel == model.LogLevelInfo {
		loglevel = model.LogLevelFromString(app.Config.LogLevel)
	}

	// set log level, format
	switch loglevel {
	case model.LogLevelDebug:
		app.Logger.Level = logrus.DebugLevel
	case model.LogLevelTrace:
		app.Logger.Level = logrus.TraceLevel
	default:
		app.Logger.Level = logrus.InfoLevel
	}

	app.Logger.SetFormatter(
		&runtime.Formatter{ChildFormatter: &logrus.JSONFormatter{}},
	)

	// route otel internal errors through the app logger
	otel.SetLogger(logrusr.New(app.Logger))

	// register for SIGINT, SIGTERM
	signal.Notify(app.TermCh, syscall.SIGINT, syscall.SIGTERM)

	return app, nil
}
