package internaldefs

import (
	goOverlay "github.com/MrEthical07/goOverlay"
)

// Namespace prefixes every exported series.
const Namespace = "overlay_"

type CounterDef struct {
	ID   goOverlay.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   goOverlay.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goOverlay.MetricLoginSuccess, Name: Namespace + "login_success_total", Help: "Logins that established a session."},
	{ID: goOverlay.MetricLoginFailure, Name: Namespace + "login_failure_total", Help: "Logins rejected by the directory or for empty input."},
	{ID: goOverlay.MetricLoginSuspended, Name: Namespace + "login_suspended_total", Help: "Logins refused because the account is suspended."},
	{ID: goOverlay.MetricLogout, Name: Namespace + "logout_total", Help: "Logouts."},
	{ID: goOverlay.MetricSessionRestored, Name: Namespace + "session_restored_total", Help: "Sessions restored from stored credentials."},
	{ID: goOverlay.MetricSessionRestoreRejected, Name: Namespace + "session_restore_rejected_total", Help: "Stored sessions discarded for suspension or token expiry."},
	{ID: goOverlay.MetricSuspensionApplied, Name: Namespace + "suspension_applied_total", Help: "Suspensions applied."},
	{ID: goOverlay.MetricSuspensionEnded, Name: Namespace + "suspension_ended_total", Help: "Suspensions lifted by an operator."},
	{ID: goOverlay.MetricSuspensionExpired, Name: Namespace + "suspension_expired_total", Help: "Suspension records pruned after their window closed."},
	{ID: goOverlay.MetricAccountMarkedDeleted, Name: Namespace + "account_marked_deleted_total", Help: "Identities hidden from member listings."},
	{ID: goOverlay.MetricActivityAppended, Name: Namespace + "activity_appended_total", Help: "Activity ledger events appended."},
	{ID: goOverlay.MetricActivityPruned, Name: Namespace + "activity_pruned_total", Help: "Activity ledger events dropped by retention or the size cap."},
	{ID: goOverlay.MetricStoreCorruption, Name: Namespace + "store_corruption_total", Help: "Stored collections that failed to parse and were reset."},
	{ID: goOverlay.MetricStoreReadFailure, Name: Namespace + "store_read_failure_total", Help: "Backend read errors."},
	{ID: goOverlay.MetricStoreWriteFailure, Name: Namespace + "store_write_failure_total", Help: "Backend write errors."},
	{ID: goOverlay.MetricDirectoryListed, Name: Namespace + "directory_listed_total", Help: "Member listings served."},
	{ID: goOverlay.MetricProfileUpdated, Name: Namespace + "profile_updated_total", Help: "Profile updates written through the directory."},
}

var HistogramDefs = []HistogramDef{
	{ID: goOverlay.MetricLoginLatency, Name: Namespace + "login_latency_seconds", Help: "Login latency including the directory call."},
}

// AuditDroppedName is the series for audit events dropped on a full buffer.
const AuditDroppedName = Namespace + "audit_dropped_total"

// HistogramBounds are the upper bounds, in seconds, of the engine's latency
// buckets.
var HistogramBounds = []string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// HistogramBoundSuffix spells HistogramBounds for use inside instrument names.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the eight engine buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into the running totals both
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, n := range raw {
		running += n
		out[i] = running
	}
	return out
}
