package blockchain

// Outcome is the result of resolving a local chain against a remote one.
type Outcome int

const (
	// KeepLocal keeps the node's current chain unchanged.
	KeepLocal Outcome = iota
	// AdoptRemote replaces the local chain with the remote one.
	AdoptRemote
)

func (o Outcome) String() string {
	if o == AdoptRemote {
		return "adopt remote"
	}
	return "keep local"
}

// ChooseChain applies the longest-valid-chain rule. An invalid remote chain
// always keeps local; the returned error carries the validation failure so
// callers can log it, but it is never fatal — a diverged or buggy peer is an
// expected occurrence. Ties keep local deterministically, favouring chain
// stability over liveness in simultaneous-mining races. Only validity and
// length are compared; there is no fork-depth or common-ancestor analysis.
func ChooseChain(local, remote *Chain, difficulty uint64) (Outcome, error) {
	if err := ValidateChain(remote, difficulty); err != nil {
		return KeepLocal, err
	}
	if remote.Length() > local.Length() {
		return AdoptRemote, nil
	}
	return KeepLocal, nil
}
