// Package prometheus serves engine metrics in the Prometheus text exposition
// format.
//
// The Exporter reads [goOverlay.Engine.MetricsSnapshot] on every scrape and
// writes one overlay_*_total counter per engine counter, the
// overlay_login_latency_seconds histogram and the live suspension gauge. It
// never registers anything globally; callers mount Handler where they like.
package prometheus
