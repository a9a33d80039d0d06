package session

// Status is a state of the send path.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusFileSelected      Status = "file_selected"
	StatusEncoding          Status = "encoding"
	StatusAwaitingRecipient Status = "awaiting_recipient"
	StatusUploading         Status = "uploading"
	StatusRegistering       Status = "registering"
	StatusConfirmed         Status = "confirmed"
	StatusCancelled         Status = "cancelled"
	StatusError             Status = "error"
)

var transitions = map[Status][]Status{
	StatusIdle:              {StatusFileSelected},
	StatusFileSelected:      {StatusEncoding, StatusFileSelected, StatusIdle},
	StatusEncoding:          {StatusAwaitingRecipient, StatusError},
	StatusAwaitingRecipient: {StatusUploading, StatusFileSelected, StatusIdle, StatusError},
	StatusUploading:         {StatusRegistering, StatusCancelled, StatusError},
	StatusRegistering:       {StatusConfirmed, StatusError},
	StatusConfirmed:         {StatusIdle},
	StatusCancelled:         {StatusIdle},
	StatusError:             {StatusUploading, StatusFileSelected, StatusIdle},
}

// CanTransition reports whether the send path may move from one status to
// another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Active reports whether work is in flight in this status.
func (s Status) Active() bool {
	switch s {
	case StatusEncoding, StatusUploading, StatusRegistering:
		return true
	default:
		return false
	}
}
