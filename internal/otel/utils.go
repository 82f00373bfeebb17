package otel

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	ReadBytesKey  = attribute.Key("http.read_bytes")  // total number of request body bytes read
	WroteBytesKey = attribute.Key("http.wrote_bytes") // total number of response bytes written
	RequestIDKey  = attribute.Key("http.request_id")

	AttributeNodeID    = "spaceflake.node_id"
	AttributeWorkerID  = "spaceflake.worker_id"
	AttributeAmount    = "spaceflake.amount"
	AttributeBaseEpoch = "spaceflake.base_epoch"
	AttributeID        = "spaceflake.id"
)

func noopMeter() metric.Meter {
	return noop.NewMeterProvider().Meter(requestMeter)
}
