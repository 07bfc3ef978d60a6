package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/ambudispatch/core/factory"
	coremetrics "github.com/kilianp07/ambudispatch/core/metrics"
)

// PromRegisterer is where the "prometheus" sink registers its collectors. The
// HTTP service scrapes prometheus.DefaultGatherer.
var PromRegisterer prometheus.Registerer = prometheus.DefaultRegisterer

type promConf struct {
	// ConstLabels are attached to every dispatch collector, e.g. a region.
	ConstLabels map[string]string `json:"const_labels"`
}

type influxConf struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

func (c influxConf) validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("influx: url is required"))
	}
	if c.Bucket == "" {
		errs = append(errs, errors.New("influx: bucket is required"))
	}
	return errors.Join(errs...)
}

func init() {
	_ = coremetrics.RegisterMetricsSink("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	_ = coremetrics.RegisterMetricsSink("prometheus", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c promConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		reg := PromRegisterer
		if len(c.ConstLabels) > 0 {
			reg = prometheus.WrapRegistererWith(c.ConstLabels, reg)
		}
		return NewPromSinkWithRegistry(reg)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c influxConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if err := c.validate(); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})
}
