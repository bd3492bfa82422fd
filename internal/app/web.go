package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/hand_rehab/internal/chart"
	"github.com/relabs-tech/hand_rehab/internal/config"
	"github.com/relabs-tech/hand_rehab/internal/forecast"
	"github.com/relabs-tech/hand_rehab/internal/logging"
	"github.com/relabs-tech/hand_rehab/internal/samplelog"
	"github.com/relabs-tech/hand_rehab/internal/source"
)

// webServer serves forecasts computed from the log and relays live samples.
type webServer struct {
	cfg *config.Config
	log logrus.FieldLogger
	hub *sampleHub

	mu         sync.RWMutex
	latest     samplelog.Sample
	haveLatest bool
}

func newWebServer(cfg *config.Config, log logrus.FieldLogger) *webServer {
	return &webServer{
		cfg: cfg,
		log: log,
		hub: newSampleHub(logging.Component(log, "ws")),
	}
}

// onSample records a sample republished by the logger and fans it out.
func (s *webServer) onSample(sample samplelog.Sample) {
	s.mu.Lock()
	s.latest = sample
	s.haveLatest = true
	s.mu.Unlock()
	s.hub.broadcast(sample)
}

func (s *webServer) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	api := r.Group("/api")
	api.GET("/forecast", s.handleForecast)
	api.GET("/forecast/chart.png", s.handleForecastChart)
	api.GET("/samples/latest", s.handleLatestSample)

	r.GET("/ws/samples", func(c *gin.Context) {
		s.hub.serve(c.Writer, c.Request)
	})
	return r
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("http request")
	}
}

// forecastOptions applies ?sessions=N&latest=bool on top of the configured
// options.
func (s *webServer) forecastOptions(c *gin.Context) (forecast.Options, error) {
	opts := ForecastOptions(s.cfg)
	if v, ok := c.GetQuery("sessions"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, &forecast.ConfigError{Field: "sessions", Reason: fmt.Sprintf("not an integer: %q", v)}
		}
		opts.SessionsToUse = n
	}
	if v, ok := c.GetQuery("latest"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, &forecast.ConfigError{Field: "latest", Reason: fmt.Sprintf("not a boolean: %q", v)}
		}
		opts.UseLatest = b
	}
	return opts, nil
}

// runForecast writes the error response itself and returns nil on failure.
func (s *webServer) runForecast(c *gin.Context) *forecast.Result {
	opts, err := s.forecastOptions(c)
	if err == nil {
		var res *forecast.Result
		res, err = loadForecast(s.cfg.LogPath, opts)
		if err == nil {
			return res
		}
	}

	var cfgErr *forecast.ConfigError
	var insufficient *forecast.InsufficientDataError
	switch {
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "invalid_config",
			"field":  cfgErr.Field,
			"reason": cfgErr.Reason,
		})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "insufficient_data",
			"have":  insufficient.Have,
			"need":  insufficient.Need,
		})
	default:
		s.log.WithError(err).Error("forecast failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
	return nil
}

func (s *webServer) handleForecast(c *gin.Context) {
	if res := s.runForecast(c); res != nil {
		c.JSON(http.StatusOK, res)
	}
}

func (s *webServer) handleForecastChart(c *gin.Context) {
	res := s.runForecast(c)
	if res == nil {
		return
	}
	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := chart.Render(c.Writer, res); err != nil {
		s.log.WithError(err).Error("chart render failed")
	}
}

func (s *webServer) handleLatestSample(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.haveLatest {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no data yet"})
		return
	}
	c.JSON(http.StatusOK, s.latest)
}

// RunWeb serves the HTTP API until ctx is cancelled.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.Info("starting hand-rehab web server (MQTT subscriber)")
	gin.SetMode(gin.ReleaseMode)
	return runWeb(ctx, cfg, log)
}

func runWeb(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	s := newWebServer(cfg, log)

	if cfg.TopicSamples != "" {
		client, err := source.Connect(source.ClientOptions{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientIDWeb,
		}, log, &source.SampleSubscription{
			Topic:   cfg.TopicSamples,
			Handler: s.onSample,
			Log:     logging.Component(log, "source"),
		})
		if err != nil {
			return err
		}
		defer source.Disconnect(client)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("web server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.hub.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	log.Info("web server stopped")
	return nil
}
