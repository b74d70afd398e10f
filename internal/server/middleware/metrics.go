package middleware

import (
	"errors"
	"reflect"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsConfig struct {
	Skipper   Skipper
	Namespace string
	Buckets   []float64
	// MetricsPath serves the scrape endpoint when non-empty.
	MetricsPath string
	// Registry defaults to the prometheus default registry.
	Registry interface {
		prometheus.Registerer
		prometheus.Gatherer
	}
}

const notFoundPath = "/not-found"

var DefaultMetricsConfig = MetricsConfig{
	Skipper: DefaultSkipper,
	Buckets: []float64{
		0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
		0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
	},
	MetricsPath: "/metrics",
}

type httpMetrics struct {
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func newHTTPMetrics(conf MetricsConfig, reg prometheus.Registerer) (*httpMetrics, error) {
	duration, err := registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: conf.Namespace,
		Name:      "request_duration_seconds",
		Help:      "Time spent serving an API route.",
		Buckets:   conf.Buckets,
	}, []string{"code", "method", "path"}))
	if err != nil {
		return nil, err
	}
	inFlight, err := registerOrReuse(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: conf.Namespace,
		Name:      "requests_in_flight",
		Help:      "API requests currently being served.",
	}))
	if err != nil {
		return nil, err
	}
	return &httpMetrics{duration: duration, inFlight: inFlight}, nil
}

func isNotFoundHandler(handler echo.HandlerFunc) bool {
	return reflect.ValueOf(handler).Pointer() == reflect.ValueOf(echo.NotFoundHandler).Pointer()
}

// MetricsWithConfig records per-route latency. Unmatched routes share one
// label value so scanners cannot blow up cardinality.
func MetricsWithConfig(conf MetricsConfig) (echo.MiddlewareFunc, error) {
	if conf.Skipper == nil {
		conf.Skipper = DefaultSkipper
	}
	if len(conf.Buckets) == 0 {
		conf.Buckets = DefaultMetricsConfig.Buckets
	}
	var (
		reg prometheus.Registerer = prometheus.DefaultRegisterer
		gat prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if conf.Registry != nil {
		reg, gat = conf.Registry, conf.Registry
	}

	m, err := newHTTPMetrics(conf, reg)
	if err != nil {
		return nil, err
	}
	var scrape echo.HandlerFunc
	if conf.MetricsPath != "" {
		scrape = echo.WrapHandler(promhttp.HandlerFor(gat, promhttp.HandlerOpts{}))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if scrape != nil && c.Request().URL.Path == conf.MetricsPath {
				return scrape(c)
			}
			if conf.Skipper(c) {
				return next(c)
			}

			m.inFlight.Inc()
			defer m.inFlight.Dec()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" || isNotFoundHandler(c.Handler()) {
				path = notFoundPath
			}
			m.duration.
				WithLabelValues(strconv.Itoa(c.Response().Status), c.Request().Method, path).
				Observe(time.Since(start).Seconds())
			return err
		}
	}, nil
}
