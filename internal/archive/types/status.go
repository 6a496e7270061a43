package types

// RetrievalStatus is the lifecycle state of a retrieval
type RetrievalStatus string

const (
	// RetrievalStatusPending is recorded before the restore command is issued
	RetrievalStatusPending RetrievalStatus = "pending"
	// RetrievalStatusInProgress means the provider accepted the restore
	RetrievalStatusInProgress RetrievalStatus = "in_progress"
	// RetrievalStatusReady means a temporary copy is downloadable
	RetrievalStatusReady RetrievalStatus = "ready"
	// RetrievalStatusExpired means the temporary copy was removed
	RetrievalStatusExpired   RetrievalStatus = "expired"
	RetrievalStatusFailed    RetrievalStatus = "failed"
	RetrievalStatusCancelled RetrievalStatus = "cancelled"
)

// ActiveRetrievalStatuses are the non-terminal states; a file has at most
// one retrieval in them.
var ActiveRetrievalStatuses = []RetrievalStatus{RetrievalStatusPending, RetrievalStatusInProgress}

var retrievalTransitions = map[RetrievalStatus][]RetrievalStatus{
	RetrievalStatusPending:    {RetrievalStatusInProgress, RetrievalStatusReady, RetrievalStatusFailed, RetrievalStatusCancelled},
	RetrievalStatusInProgress: {RetrievalStatusReady, RetrievalStatusExpired, RetrievalStatusFailed},
	RetrievalStatusReady:      {RetrievalStatusExpired},
}

// Valid reports whether s is a known status
func (s RetrievalStatus) Valid() bool {
	switch s {
	case RetrievalStatusPending, RetrievalStatusInProgress, RetrievalStatusReady,
		RetrievalStatusExpired, RetrievalStatusFailed, RetrievalStatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether s is pending or in progress
func (s RetrievalStatus) IsActive() bool {
	return s == RetrievalStatusPending || s == RetrievalStatusInProgress
}

// IsTerminal reports whether s ends the restore attempt. Ready is terminal
// for the attempt even though the copy can still expire.
func (s RetrievalStatus) IsTerminal() bool {
	return s.Valid() && !s.IsActive()
}

// CanTransitionTo reports whether the state machine allows s -> next
func (s RetrievalStatus) CanTransitionTo(next RetrievalStatus) bool {
	for _, allowed := range retrievalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SourcesFor lists the states that may move to next
func SourcesFor(next RetrievalStatus) []RetrievalStatus {
	var from []RetrievalStatus
	for _, s := range []RetrievalStatus{RetrievalStatusPending, RetrievalStatusInProgress, RetrievalStatusReady} {
		if s.CanTransitionTo(next) {
			from = append(from, s)
		}
	}
	return from
}

func (s RetrievalStatus) String() string {
	return string(s)
}

// FileStatus is the lifecycle state of a stored file
type FileStatus string

const (
	FileStatusUploading FileStatus = "uploading"
	FileStatusAvailable FileStatus = "available"
	FileStatusRestoring FileStatus = "restoring"
	FileStatusDeleted   FileStatus = "deleted"
)

// Valid reports whether s is a known status
func (s FileStatus) Valid() bool {
	switch s {
	case FileStatusUploading, FileStatusAvailable, FileStatusRestoring, FileStatusDeleted:
		return true
	}
	return false
}

func (s FileStatus) String() string {
	return string(s)
}
