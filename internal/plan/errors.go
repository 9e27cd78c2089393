package plan

import (
	"github.com/cockroachdb/errors"

	"github.com/saad749/rheem/internal/rheemerrors"
)

func errAlreadyConnected(in *InputSlot) error {
	return rheemerrors.Newf(rheemerrors.PlanSanityError,
		"input slot %d of operator %d already has an incoming connection", in.Index, in.Owner.ID())
}

func errDanglingInput(op Operator, idx int) error {
	return rheemerrors.Newf(rheemerrors.PlanSanityError,
		"operator %d (%s): required input slot %d has no incoming connection", op.ID(), op.Class(), idx)
}

func errUnknownPlatform(op Operator, platform string) error {
	return rheemerrors.Newf(rheemerrors.PlanSanityError,
		"operator %d (%s): platform %q is not in the active platform set", op.ID(), op.Class(), platform)
}

func errCycle(op Operator) error {
	return rheemerrors.Newf(rheemerrors.PlanSanityError,
		"operator %d (%s) participates in a cycle outside any loop", op.ID(), op.Class())
}

func errEmptyPlan() error {
	return rheemerrors.Newf(rheemerrors.PlanSanityError, "plan has no sinks")
}

// wrapf is a small local helper kept so other files in this package read
// like the rest of the module (error wrapping goes through
// github.com/cockroachdb/errors, never fmt.Errorf).
func wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
