// Package payment abstracts the external settlement capability used to pay
// specialists for responses. Settlement correctness is an external concern;
// the broker only needs "produce a proof, read back a receipt".
package payment

import "context"

// Proof is an opaque settlement proof attached to a paid specialist call.
type Proof struct {
	// Token is sent verbatim in the X-Payment header.
	Token string
	// Amount is the settled amount in smallest currency units.
	Amount int
}

// Receipt is the settlement acknowledgment a specialist returns.
type Receipt struct {
	// Reference is the specialist's settlement reference, read from the
	// X-Payment-Receipt response header. May be empty when the specialist
	// does not confirm settlement.
	Reference string
	Amount    int
}

// Settler produces settlement proofs for paid specialist calls.
type Settler interface {
	// Settle commits amount to the specialist at endpoint and returns a
	// proof the specialist can verify.
	Settle(ctx context.Context, endpoint string, amount int) (Proof, error)
}

// NoopSettler issues unverifiable dev proofs. It exists for local runs and
// tests; production paid mode wires a real settlement client instead.
type NoopSettler struct{}

// Settle returns a static dev proof for the requested amount.
func (NoopSettler) Settle(_ context.Context, _ string, amount int) (Proof, error) {
	return Proof{Token: "dev-settlement", Amount: amount}, nil
}
