package internaldefs

import (
	goAccount "github.com/MrEthical07/goAccount"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goAccount.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   goAccount.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goAccount.MetricLoginSuccess, Name: "goaccount_login_success_total", Help: "Successful logins."},
	{ID: goAccount.MetricLoginFailure, Name: "goaccount_login_failure_total", Help: "Failed logins."},
	{ID: goAccount.MetricLoginRateLimited, Name: "goaccount_login_rate_limited_total", Help: "Logins rejected by the failed-login budget."},
	{ID: goAccount.MetricLogout, Name: "goaccount_logout_total", Help: "Logouts."},
	{ID: goAccount.MetricSessionCreated, Name: "goaccount_session_created_total", Help: "Token pairs issued, including rotations."},
	{ID: goAccount.MetricSessionRevoked, Name: "goaccount_session_revoked_total", Help: "Completed session revocations."},
	{ID: goAccount.MetricRevokeIncomplete, Name: "goaccount_revoke_incomplete_total", Help: "Revocations where a ledger write failed."},
	{ID: goAccount.MetricVerifySuccess, Name: "goaccount_verify_success_total", Help: "Tokens that verified."},
	{ID: goAccount.MetricVerifyFailure, Name: "goaccount_verify_failure_total", Help: "Tokens that failed verification."},
	{ID: goAccount.MetricVerifyRevoked, Name: "goaccount_verify_revoked_total", Help: "Tokens rejected because a newer pair or a revoke superseded them."},
	{ID: goAccount.MetricStoreUnavailable, Name: "goaccount_store_unavailable_total", Help: "Operations failed closed on a ledger outage."},
	{ID: goAccount.MetricRefreshSuccess, Name: "goaccount_refresh_success_total", Help: "Successful refreshes."},
	{ID: goAccount.MetricRefreshFailure, Name: "goaccount_refresh_failure_total", Help: "Failed refreshes."},
	{ID: goAccount.MetricRefreshRaceLost, Name: "goaccount_refresh_race_lost_total", Help: "Refreshes that lost the compare-and-set to a concurrent refresh."},
	{ID: goAccount.MetricPasswordChangeSuccess, Name: "goaccount_password_change_success_total", Help: "Successful password changes."},
	{ID: goAccount.MetricPasswordChangeInvalidOld, Name: "goaccount_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: goAccount.MetricPasswordChangeReuseRejected, Name: "goaccount_password_change_reuse_rejected_total", Help: "Password changes rejected for reusing the current password."},
	{ID: goAccount.MetricPasswordResetRequest, Name: "goaccount_password_reset_request_total", Help: "Password reset tokens issued."},
	{ID: goAccount.MetricPasswordResetConfirmSuccess, Name: "goaccount_password_reset_confirm_success_total", Help: "Completed password resets."},
	{ID: goAccount.MetricPasswordResetConfirmFailure, Name: "goaccount_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: goAccount.MetricVerificationRequest, Name: "goaccount_verification_request_total", Help: "Account verification tokens issued."},
	{ID: goAccount.MetricVerificationSuccess, Name: "goaccount_verification_success_total", Help: "Completed account verifications."},
	{ID: goAccount.MetricVerificationFailure, Name: "goaccount_verification_failure_total", Help: "Failed account verifications."},
	{ID: goAccount.MetricOneTimeRateLimited, Name: "goaccount_onetime_rate_limited_total", Help: "One-time token requests rejected by the request budget."},
	{ID: goAccount.MetricPermissionDenied, Name: "goaccount_permission_denied_total", Help: "Denied authorization checks."},
	{ID: goAccount.MetricAccountEnabled, Name: "goaccount_account_enabled_total", Help: "Accounts enabled."},
	{ID: goAccount.MetricAccountDisabled, Name: "goaccount_account_disabled_total", Help: "Accounts disabled."},
	{ID: goAccount.MetricRoleChanged, Name: "goaccount_role_changed_total", Help: "User role assignments."},
	{ID: goAccount.MetricRolePermissionsUpdated, Name: "goaccount_role_permissions_updated_total", Help: "Role permission replacements."},
}

// HistogramDefs lists the exported latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: goAccount.MetricVerifyLatency, Name: "goaccount_verify_latency_seconds", Help: "Token verification latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The engine
// keeps one more overflow bucket.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, overflow last, for exporters that
// flatten buckets into separate instruments.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// BucketCount is the number of engine buckets including overflow.
const BucketCount = 8

// NormalizeBuckets copies raw into a fixed-size array, zero-filling a short
// or missing snapshot.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals. The last
// element is the sample count.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
