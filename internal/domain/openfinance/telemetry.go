package openfinance

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	ofTracer           = otel.Tracer("finlink/openfinance")
	ofMeter            = otel.Meter("finlink/openfinance")
	accountsLinked, _  = ofMeter.Int64Counter("reconcile.accounts.linked", metric.WithDescription("External accounts linked to an existing record, by tier"))
	recordsCreated, _  = ofMeter.Int64Counter("reconcile.records.fabricated", metric.WithDescription("Local records created for unmatched external accounts, by kind"))
	accountsPending, _ = ofMeter.Int64Counter("reconcile.accounts.unmatched", metric.WithDescription("External accounts left for review"))
	refreshTotal, _    = ofMeter.Int64Counter("refresh.total", metric.WithDescription("Connection refreshes by status"))
	refreshDuration, _ = ofMeter.Float64Histogram("refresh.duration", metric.WithDescription("Connection refresh duration in seconds"), metric.WithUnit("s"))
)
