package smoke

import (
	"fmt"

	"github.com/kuitang/inventory-smoke/internal/errs"
)

// Assertion failures are the only errors that record a case as "fail";
// everything else is an "error".

func assertPresent(found bool, msg string) error {
	if found {
		return nil
	}
	return errs.New(errs.AssertionFailed, fmt.Sprintf("element not found : %s", msg))
}

func assertGreater(got, floor int, msg string) error {
	if got > floor {
		return nil
	}
	return errs.New(errs.AssertionFailed, fmt.Sprintf("%d not greater than %d : %s", got, floor, msg))
}
