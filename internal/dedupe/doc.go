// Package dedupe remembers recently seen keys for a bounded time window.
//
// Agents key it by command ID so a Pending command delivered more than once
// (for example after the gateway resends it) is executed only once.
package dedupe
