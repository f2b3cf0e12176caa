package escrow

import (
	"errors"
	"math/big"
	"testing"
)

func sampleEscrow() *Escrow {
	return &Escrow{
		ID:          1,
		Buyer:       newTestAddress(0x01),
		Seller:      newTestAddress(0x02),
		Amount:      big.NewInt(1_000),
		PlatformFee: big.NewInt(25),
		Status:      StatusFunded,
		Milestones: []*Milestone{
			{Amount: big.NewInt(400), Description: "design"},
			{Amount: big.NewInt(600), Description: "delivery"},
		},
	}
}

func TestSanitizeEscrow(t *testing.T) {
	esc := sampleEscrow()
	esc.Description = "  padded  "
	sanitized, err := SanitizeEscrow(esc)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.Description != "padded" {
		t.Fatalf("description not trimmed: %q", sanitized.Description)
	}
	if esc.Description != "  padded  " {
		t.Fatalf("sanitize must not mutate the input")
	}

	if _, err := SanitizeEscrow(nil); !errors.Is(err, ErrInvalidEscrow) {
		t.Fatalf("nil escrow: %v", err)
	}
	zeroID := sampleEscrow()
	zeroID.ID = 0
	if _, err := SanitizeEscrow(zeroID); !errors.Is(err, ErrInvalidEscrow) {
		t.Fatalf("zero id: %v", err)
	}
	badSum := sampleEscrow()
	badSum.Milestones[0].Amount = big.NewInt(1)
	if _, err := SanitizeEscrow(badSum); !errors.Is(err, ErrInvalidEscrow) {
		t.Fatalf("milestone mismatch: %v", err)
	}
	negFee := sampleEscrow()
	negFee.PlatformFee = big.NewInt(-1)
	if _, err := SanitizeEscrow(negFee); !errors.Is(err, ErrInvalidEscrow) {
		t.Fatalf("negative fee: %v", err)
	}
	badStatus := sampleEscrow()
	badStatus.Status = Status(99)
	if _, err := SanitizeEscrow(badStatus); !errors.Is(err, ErrInvalidEscrow) {
		t.Fatalf("invalid status: %v", err)
	}
}

func TestEscrowCloneIsolation(t *testing.T) {
	esc := sampleEscrow()
	clone := esc.Clone()
	clone.Amount.SetInt64(1)
	clone.Milestones[0].Completed = true
	clone.Milestones[0].Amount.SetInt64(1)

	if esc.Amount.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("amount leaked through clone")
	}
	if esc.Milestones[0].Completed || esc.Milestones[0].Amount.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("milestones leaked through clone")
	}
}

func TestReleasedAndRemainingAmounts(t *testing.T) {
	esc := sampleEscrow()
	if esc.ReleasedAmount().Sign() != 0 {
		t.Fatalf("nothing released yet")
	}
	if esc.RemainingAmount().Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("remaining %s", esc.RemainingAmount())
	}

	esc.Milestones[0].Completed = true
	if esc.ReleasedAmount().Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("released %s after first milestone", esc.ReleasedAmount())
	}
	if esc.RemainingAmount().Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("remaining %s after first milestone", esc.RemainingAmount())
	}

	plain := &Escrow{ID: 2, Amount: big.NewInt(500), Status: StatusCompleted}
	if plain.ReleasedAmount().Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("completed no-milestone escrow releases the full principal")
	}
}

func TestStatusStrings(t *testing.T) {
	cases := map[Status]string{
		StatusPending:   "pending",
		StatusFunded:    "funded",
		StatusCompleted: "completed",
		StatusDisputed:  "disputed",
		StatusExpired:   "expired",
		StatusCancelled: "cancelled",
	}
	for status, want := range cases {
		if !status.Valid() {
			t.Fatalf("%s must be valid", want)
		}
		if status.String() != want {
			t.Fatalf("String() = %q, want %q", status.String(), want)
		}
	}
	if Status(99).Valid() {
		t.Fatalf("out-of-range status must be invalid")
	}
}

func TestMilestoneValidate(t *testing.T) {
	var nilMilestone *Milestone
	if err := nilMilestone.Validate(); !errors.Is(err, ErrInvalidEscrow) {
		t.Fatalf("nil milestone: %v", err)
	}
	if err := (&Milestone{Amount: big.NewInt(0)}).Validate(); !errors.Is(err, ErrInvalidEscrow) {
		t.Fatalf("zero amount: %v", err)
	}
	if err := (&Milestone{Amount: big.NewInt(1)}).Validate(); err != nil {
		t.Fatalf("valid milestone: %v", err)
	}
}
