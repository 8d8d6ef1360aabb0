package domain

// UserDataProcessingChoice identifies the kind of data request a citizen can make.
type UserDataProcessingChoice string

const (
	UserDataProcessingDownload UserDataProcessingChoice = "DOWNLOAD"
	UserDataProcessingDelete   UserDataProcessingChoice = "DELETE"
)

// IsValid returns true if the choice is one of the known values.
func (c UserDataProcessingChoice) IsValid() bool {
	switch c {
	case UserDataProcessingDownload, UserDataProcessingDelete:
		return true
	default:
		return false
	}
}

// UserDataProcessingStatus is the backend state of a data request.
type UserDataProcessingStatus string

const (
	UserDataProcessingPending   UserDataProcessingStatus = "PENDING"
	UserDataProcessingWIP       UserDataProcessingStatus = "WIP"
	UserDataProcessingCompleted UserDataProcessingStatus = "COMPLETED"
	UserDataProcessingAborted   UserDataProcessingStatus = "ABORTED"
)

// IsTerminal returns true if the status will not change anymore.
func (s UserDataProcessingStatus) IsTerminal() bool {
	return s == UserDataProcessingCompleted || s == UserDataProcessingAborted
}

// UserDataProcessing is a citizen data request as returned by the backend.
type UserDataProcessing struct {
	Choice  UserDataProcessingChoice `json:"choice" validate:"required,oneof=DOWNLOAD DELETE"`
	Status  UserDataProcessingStatus `json:"status" validate:"required,oneof=PENDING WIP COMPLETED ABORTED"`
	Version int                      `json:"version" validate:"gte=0"`
}
