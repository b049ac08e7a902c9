// Package monitor observes the bus: it keeps a directory of the modules that
// announced themselves, discovers them on demand, exports connection metrics to
// Prometheus and serves health checks over HTTP.
package monitor
