// Package adminapi is the HTTP console operators use to suspend, reinstate
// and hide members and to read their activity.
//
// Every /api route runs behind a per-client token bucket and the same
// admission rules as middleware.Guard, then requires an admin role. /metrics
// and /healthz are rate limited but unauthenticated.
package adminapi
