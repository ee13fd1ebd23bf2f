package verifier

import "fmt"

// classify fills Status and Reason from the evidence accumulated on the
// result. rcptCode is the last RCPT reply observed across all connected
// hosts (last-seen wins, see Verifier.check), 0 when none was read.
func classify(res *Result, rcptCode int) {
	deliverable := res.IsDeliverable
	catchAll := res.IsCatchAll

	switch {
	case !res.SMTPConnectable && deliverable == nil:
		res.Status = StatusUnknown
		res.Reason = strPtr(ReasonSMTPUnreachable)
	case deliverable != nil && *deliverable && catchAll != nil && *catchAll:
		res.Status = StatusUnknown
		res.Reason = strPtr(ReasonAcceptsAll)
	case deliverable != nil && *deliverable:
		res.Status = StatusDeliverable
		res.Reason = nil
	case deliverable != nil && !*deliverable:
		res.Status = StatusUndeliverable
		res.Reason = strPtr(rcptReason(rcptCode, ReasonHardFail))
	default:
		res.Status = StatusUnknown
		res.Reason = strPtr(rcptReason(rcptCode, ReasonTempFail))
	}
}

func rcptReason(code int, fallback string) string {
	if code != 0 {
		return fmt.Sprintf("rcpt_%d", code)
	}
	return fallback
}
