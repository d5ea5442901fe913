package store

// Reconciliation is the sequence tracker's verdict for one incoming seq.
type Reconciliation struct {
	ShouldWrite bool
	AckSeq      int64
}

// reconcile compares an incoming seq with the recorded high-water mark.
// A stale or duplicate seq acknowledges the recorded value instead.
func reconcile(last int64, recorded bool, incoming int64) Reconciliation {
	if recorded && incoming <= last {
		return Reconciliation{ShouldWrite: false, AckSeq: last}
	}
	return Reconciliation{ShouldWrite: true, AckSeq: incoming}
}

// Reconcile reports what a write carrying seq would do without writing.
// Writes go through Put with AboveSequence, which repeats the comparison
// inside the document's critical section.
func (s *Store) Reconcile(id string, seq int64) (Reconciliation, error) {
	if err := ValidateID(id); err != nil {
		return Reconciliation{}, err
	}
	lock := s.documentLock(id)
	lock.Lock()
	defer lock.Unlock()

	last, recorded, err := s.readSequence(id)
	if err != nil {
		return Reconciliation{}, err
	}
	return reconcile(last, recorded, seq), nil
}

// LastSequence returns the recorded high-water mark, ok=false when none.
func (s *Store) LastSequence(id string) (int64, bool, error) {
	if err := ValidateID(id); err != nil {
		return 0, false, err
	}
	return s.readSequence(id)
}
