// Command metricsd is a thin wiring harness around the metricagg core: it
// loads a CollectionConfig, starts a manager and driver, registers a couple
// of example metrics, and writes finalized aggregates to stdout, one line
// per aggregate. It exists to exercise the library end to end, not as part
// of its public contract.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relaymetrics/metricagg/aggregator"
	"github.com/relaymetrics/metricagg/config"
	"github.com/relaymetrics/metricagg/driver"
	"github.com/relaymetrics/metricagg/metric"
	"github.com/relaymetrics/metricagg/registry"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "metricsd",
	Short: "run the metricagg aggregation core against a stdout sink",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: env/flags only)")
	rootCmd.Flags().Int("period", 0, "aggregation period in seconds (overrides config)")
	viper.BindPFlag("aggregation_period_length_seconds", rootCmd.Flags().Lookup("period"))
}

func initViper() *viper.Viper {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			log.Warnf("metricsd: could not read config file %s: %v", cfgFile, err)
		}
	}
	v.SetEnvPrefix("METRICSD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.BindPFlag("aggregation_period_length_seconds", rootCmd.Flags().Lookup("period"))
	return v
}

type stdoutSink struct{}

func (stdoutSink) SubmitMetrics(block []aggregator.Aggregate) {
	for _, a := range block {
		switch v := a.(type) {
		case *aggregator.CountAggregate:
			fmt.Printf("count sum=%d start=%s end=%s\n", v.Sum, v.PeriodStartTimestamp(), v.PeriodEndTimestamp())
		case *aggregator.MeasurementAggregate:
			fmt.Printf("measurement count=%d sum=%f min=%f max=%f stddev=%f start=%s end=%s\n",
				v.Count, v.Sum, v.Min, v.Max, v.StdDev, v.PeriodStartTimestamp(), v.PeriodEndTimestamp())
		}
		a.ReinitializeAndReturnToOwner()
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(initViper())
	if err != nil {
		return err
	}

	manager := registry.NewManager()
	manager.SetSubmissionManager(stdoutSink{})

	requests, err := metric.NewIdentity("demo.requests", nil)
	if err != nil {
		return err
	}
	latencyTag, err := metric.NewTag("route", "demo", true)
	if err != nil {
		return err
	}
	latency, err := metric.NewIdentity("demo.latency", []metric.Tag{latencyTag})
	if err != nil {
		return err
	}

	requestsMetric, err := manager.GetOrAddMetric(requests, metric.Count)
	if err != nil {
		return err
	}
	latencyMetric, err := manager.GetOrAddMetric(latency, metric.Measurement)
	if err != nil {
		return err
	}

	d, err := driver.New(manager, cfg)
	if err != nil {
		return err
	}
	if err := d.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	n := 0
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := d.Shutdown(shutdownCtx); err != nil {
				log.Errorf("metricsd: shutdown: %v", err)
			}
			d.Dispose()
			return nil
		case <-ticker.C:
			n++
			requestsMetric.CollectInt(1)
			latencyMetric.CollectFloat(float64(n % 100))
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
