package domain

import "fmt"

// TradeProposal is a candidate trade after analysis and sizing but before
// risk gating. It lives only within one evaluation pass.
type TradeProposal struct {
	Signal     Signal
	Report     EdgeReport
	Kelly      float64
	Confidence string
}

// Veto is a structured risk-gate rejection.
type Veto struct {
	Rule   string
	Reason string
}

func (v Veto) Error() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Reason)
}

// Review is the external reviewer's ruling on a proposal that cleared
// the hard gate.
type Review struct {
	Decision   string // APPROVE | VETO
	VetoReason string
	Concerns   []string
	RiskScore  int // 1..10
	Summary    string
}

// DecisionStatus is the terminal state of one signal evaluation.
type DecisionStatus string

const (
	StatusPassed   DecisionStatus = "PASS"
	StatusVetoed   DecisionStatus = "VETOED"
	StatusApproved DecisionStatus = "APPROVED"
)

// Decision is the terminal result of evaluating one signal. Exactly the
// fields valid for its status are set: a PASS carries only a reason, a
// veto carries the proposal plus either a gate Veto or a Review, an
// approval carries the proposal and its approving Review.
type Decision struct {
	Status   DecisionStatus
	Reason   string
	Proposal *TradeProposal
	GateVeto *Veto
	Review   *Review
}

// Passed builds a PASS decision: no edge, bad data, or policy criteria
// not met. Never carries a proposal.
func Passed(reason string) Decision {
	return Decision{Status: StatusPassed, Reason: reason}
}

// VetoedByGate builds a VETOED decision from a hard risk-gate rule.
func VetoedByGate(p TradeProposal, v Veto) Decision {
	return Decision{
		Status:   StatusVetoed,
		Reason:   v.Reason,
		Proposal: &p,
		GateVeto: &v,
	}
}

// VetoedByReview builds a VETOED decision from the external reviewer.
func VetoedByReview(p TradeProposal, r Review) Decision {
	return Decision{
		Status:   StatusVetoed,
		Reason:   r.VetoReason,
		Proposal: &p,
		Review:   &r,
	}
}

// Approved builds an APPROVED decision. Only approved decisions may reach
// the ledger or the broker.
func Approved(p TradeProposal, r Review) Decision {
	return Decision{
		Status:   StatusApproved,
		Reason:   r.Summary,
		Proposal: &p,
		Review:   &r,
	}
}

// RiskScore returns the reviewer's risk score, or 0 when no review ran.
func (d Decision) RiskScore() int {
	if d.Review == nil {
		return 0
	}
	return d.Review.RiskScore
}

// Concerns returns the reviewer's concern list, or nil when no review ran.
func (d Decision) Concerns() []string {
	if d.Review == nil {
		return nil
	}
	return d.Review.Concerns
}
