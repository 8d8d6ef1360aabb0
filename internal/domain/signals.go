package domain

// SignalType names a state-change notification dispatched to the store.
type SignalType string

const (
	SignalProfileLoadRequest      SignalType = "profile.load_request"
	SignalProfileLoadSuccess      SignalType = "profile.load_success"
	SignalProfileLoadFailure      SignalType = "profile.load_failure"
	SignalSessionExpired          SignalType = "session.expired"
	SignalProfileRefreshRequested SignalType = "profile.refresh_requested"

	SignalUserDataLoadRequest SignalType = "user_data_processing.load_request"
	SignalUserDataLoadSuccess SignalType = "user_data_processing.load_success"
	SignalUserDataLoadFailure SignalType = "user_data_processing.load_failure"
)

// Refresh reasons carried by refresh_requested signals.
const (
	RefreshReasonUser      = "user"
	RefreshReasonRetry     = "retry"
	RefreshReasonScheduled = "scheduled"
	RefreshReasonCommand   = "command"
)

// Signal is a single state-change notification.
// Only the fields relevant to Type are populated.
type Signal struct {
	Type SignalType

	// Profile is set on profile.load_success.
	Profile *Profile

	// Err is set on the load_failure signals.
	Err error

	// Attempt is the 1-based attempt number of a refresh_requested signal.
	Attempt int

	// Reason explains why a refresh_requested signal was emitted.
	Reason string

	// Choice is set on the user_data_processing signals.
	Choice UserDataProcessingChoice

	// UserData is the loaded request on user_data_processing.load_success.
	// Nil means the citizen has not made a request of that kind.
	UserData *UserDataProcessing

	// Replicated is set on signals read back from the event stream. They
	// are already published and must not be published again.
	Replicated bool
}

// ErrorMessage returns the error text of the signal, or the empty string.
func (s Signal) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// ProfileLoadRequest returns the loading marker emitted before the profile call.
func ProfileLoadRequest() Signal {
	return Signal{Type: SignalProfileLoadRequest}
}

// ProfileLoadSuccess returns the signal carrying a freshly loaded profile.
func ProfileLoadSuccess(p *Profile) Signal {
	return Signal{Type: SignalProfileLoadSuccess, Profile: p}
}

// ProfileLoadFailure returns the signal reporting a failed refresh.
func ProfileLoadFailure(err error) Signal {
	return Signal{Type: SignalProfileLoadFailure, Err: err}
}

// SessionExpired returns the signal reporting that the session is no longer valid.
func SessionExpired() Signal {
	return Signal{Type: SignalSessionExpired}
}

// ProfileRefreshRequested returns the trigger that starts a profile refresh.
func ProfileRefreshRequested(attempt int, reason string) Signal {
	if attempt < 1 {
		attempt = 1
	}
	return Signal{Type: SignalProfileRefreshRequested, Attempt: attempt, Reason: reason}
}

// UserDataLoadRequest returns the trigger that loads a data request status.
func UserDataLoadRequest(choice UserDataProcessingChoice) Signal {
	return Signal{Type: SignalUserDataLoadRequest, Choice: choice}
}

// UserDataLoadSuccess returns the signal carrying a loaded data request.
func UserDataLoadSuccess(choice UserDataProcessingChoice, value *UserDataProcessing) Signal {
	return Signal{Type: SignalUserDataLoadSuccess, Choice: choice, UserData: value}
}

// UserDataLoadFailure returns the signal reporting a failed data request load.
func UserDataLoadFailure(choice UserDataProcessingChoice, err error) Signal {
	return Signal{Type: SignalUserDataLoadFailure, Choice: choice, Err: err}
}
