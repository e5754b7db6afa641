package app

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ecomstaging/internal/config"
	"ecomstaging/internal/metrics"
	"ecomstaging/internal/metrics/datadog"
	"ecomstaging/internal/metrics/prompush"
)

// SetupMetrics installs the configured metrics backend. The returned
// function flushes it and must be called before the process exits.
func SetupMetrics(m config.Metrics, log logrus.FieldLogger) (func(), error) {
	flush := func() {
		if err := metrics.Flush(); err != nil {
			log.WithError(err).Warn("metrics flush failed")
		}
	}

	switch m.Backend {
	case "", "none":
		metrics.Reset()
		return func() {}, nil
	case "pushgateway":
		b, err := prompush.NewBackend(m.JobName, m.PushgatewayURL)
		if err != nil {
			return nil, errors.Wrap(err, "metrics")
		}
		metrics.SetBackend(b)
		log.WithField("url", m.PushgatewayURL).Info("metrics: pushing to Prometheus Pushgateway")
		return flush, nil
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       m.DogStatsDAddr,
			Namespace:  m.JobName + ".",
			GlobalTags: []string{"job:" + m.JobName},
		})
		if err != nil {
			return nil, errors.Wrap(err, "metrics")
		}
		metrics.SetBackend(b)
		log.WithField("addr", m.DogStatsDAddr).Info("metrics: sending to DogStatsD")
		return func() {
			flush()
			_ = b.Close()
		}, nil
	default:
		return nil, errors.Errorf("metrics: unknown backend %q", m.Backend)
	}
}
