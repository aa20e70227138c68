// Package telemetry provides OpenTelemetry metrics wiring and semantic conventions for riftpilot.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic convention attribute keys.
// Following OpenTelemetry naming conventions: namespace.attribute_name

const (
	// AttrEnvironment specifies the deployment environment (dev/prod) for every metric.
	AttrEnvironment = attribute.Key("environment")
	// AttrConnectionState labels connector lifecycle signals (connecting, connected, disconnected).
	AttrConnectionState = attribute.Key("connection.state")
	// AttrResult records the outcome of an operation (ok, no_credentials, transport, status).
	AttrResult = attribute.Key("result")
	// AttrMethod is the control-plane HTTP method.
	AttrMethod = attribute.Key("http.method")
	// AttrRoute is the control-plane path with numeric segments collapsed.
	AttrRoute = attribute.Key("http.route")
	// AttrEventURI is the pushed event URI.
	AttrEventURI = attribute.Key("event.uri")
	// AttrEventType is Create/Update/Delete.
	AttrEventType = attribute.Key("event.type")
	// AttrRule names an automation rule.
	AttrRule = attribute.Key("rule")
	// AttrObserver names a dispatcher observer.
	AttrObserver = attribute.Key("observer")
	// AttrMessageType differentiates UI message classes.
	AttrMessageType = attribute.Key("message.type")
)

// ConnectionAttributes returns attributes for connection state metrics.
func ConnectionAttributes(environment, state string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrConnectionState.String(state),
	}
}

// RequestAttributes returns attributes for control-plane request metrics.
func RequestAttributes(environment, method, route, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrMethod.String(method),
		AttrRoute.String(route),
		AttrResult.String(result),
	}
}

// EventAttributes returns attributes for dispatched event metrics.
func EventAttributes(environment, uri, eventType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrEventURI.String(uri),
		AttrEventType.String(eventType),
	}
}

// RuleAttributes returns attributes for automation rule metrics.
func RuleAttributes(environment, rule, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrRule.String(rule),
		AttrResult.String(result),
	}
}
