package types

// RestoreEvent is a storage event name the reconciler can act on
type RestoreEvent string

const (
	RestoreEventInitiated RestoreEvent = "ObjectRestore:Post"
	RestoreEventCompleted RestoreEvent = "ObjectRestore:Completed"
	RestoreEventDeleted   RestoreEvent = "ObjectRestore:Delete"
)
