// Package prometheus exports goAccount engine counters and the verify latency
// histogram through the Prometheus client library.
//
// Register [NewCollector] on an existing registry, or mount [Handler] for a
// standalone scrape endpoint:
//
//	reg.MustRegister(prometheus.NewCollector(engine))
//
// Samples are read from [goAccount.Engine.MetricsSnapshot] on every scrape;
// nothing is cached between scrapes.
package prometheus
