// Package rate provides Redis fixed-window counters for failed logins and
// one-time token requests.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit. Key prefixes:
//   - rl:login:    failed logins per identifier
//   - rl:login-ip: failed logins per client IP
//   - rl:onetime:  reset and verification requests per identifier
package rate
