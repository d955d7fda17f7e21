package binary

import (
	"errors"
	"testing"

	"github.com/farcloser/primordium/fault"
)

func TestRequireMissing(t *testing.T) {
	t.Parallel()

	if _, err := Require("auricle-no-such-binary"); !errors.Is(err, fault.ErrMissingRequirements) {
		t.Errorf("err = %v, want ErrMissingRequirements", err)
	}

	if _, found := Available("auricle-no-such-binary"); found {
		t.Error("binary should not be found")
	}
}
