package store

// state is what a guard sees of a document inside its critical section.
type state struct {
	exists   bool
	current  Snapshot
	lastSeq  int64
	recorded bool
}

// plan is a guard's decision. A zero revision leaves the revision sidecar
// alone; writeSeq records seq as the new high-water mark.
type plan struct {
	skip     bool
	ackSeq   int64
	revision int64
	writeSeq bool
	seq      int64
}

// Guard decides whether a durable write may proceed and which sidecars it
// updates. Obtain one from ExpectRevision, AboveSequence or Unconditional.
type Guard interface {
	plan(st state) (plan, error)
}

type revisionGuard struct {
	expected int64
}

// ExpectRevision is the compare-and-swap gate of the primary write path.
// A document that does not exist yet accepts any expected revision and
// starts at revision 1.
func ExpectRevision(expected int64) Guard {
	return revisionGuard{expected: expected}
}

func (g revisionGuard) plan(st state) (plan, error) {
	if !st.exists {
		return plan{revision: 1}, nil
	}
	if st.current.Revision != g.expected {
		return plan{}, &ConflictError{Expected: g.expected, Current: st.current}
	}
	return plan{revision: st.current.Revision + 1}, nil
}

type sequenceGuard struct {
	seq int64
}

// AboveSequence is the high-water-mark gate of the idempotent write path.
// A seq at or below the recorded one skips the write.
func AboveSequence(seq int64) Guard {
	return sequenceGuard{seq: seq}
}

func (g sequenceGuard) plan(st state) (plan, error) {
	verdict := reconcile(st.lastSeq, st.recorded, g.seq)
	if !verdict.ShouldWrite {
		return plan{skip: true, ackSeq: verdict.AckSeq}, nil
	}
	return plan{writeSeq: true, seq: g.seq, ackSeq: verdict.AckSeq}, nil
}

type unconditionalGuard struct{}

// Unconditional writes the blob and touches no sidecar.
func Unconditional() Guard {
	return unconditionalGuard{}
}

func (unconditionalGuard) plan(st state) (plan, error) {
	return plan{ackSeq: st.lastSeq}, nil
}
