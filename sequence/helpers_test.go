package sequence_test

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vessel/sequence"
)

var errInjected = errors.New("injected failure")

// trackingTraits counts live elements and every operation performed on them, and can be told to
// fail a particular construction or copy.
type trackingTraits struct {
	live       int
	constructs int
	copies     int
	moves      int
	destroys   int

	// 1-based index of the operation that should fail; 0 never fails
	failConstructAt int
	failCopyAt      int

	moveMayFail bool
}

var _ sequence.Traits[int] = &trackingTraits{}

func (t *trackingTraits) Construct(slot *int) error {
	t.constructs++
	if t.constructs == t.failConstructAt {
		return errInjected
	}

	*slot = 0
	t.live++
	return nil
}

func (t *trackingTraits) Copy(dst, src *int) error {
	t.copies++
	if t.copies == t.failCopyAt {
		// Leave a partial write behind to make sure the sequence wipes the slot
		*dst = -1
		return errInjected
	}

	*dst = *src
	t.live++
	return nil
}

func (t *trackingTraits) Move(dst, src *int) error {
	t.moves++
	*dst = *src
	*src = 0
	t.live++
	return nil
}

func (t *trackingTraits) NoFailMove() bool {
	return !t.moveMayFail
}

func (t *trackingTraits) Destroy(slot *int) {
	t.destroys++
	t.live--
	*slot = 0
}

func intsEqual(a, b int) bool { return a == b }
