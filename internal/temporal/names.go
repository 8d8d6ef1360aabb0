package temporal

// Workflow, activity and query names. They live here so that the server and
// the CLI can start and query workflows without importing the workflows
// package.
const (
	// ProfileRefreshWorkflowName is the registered name of the durable refresh workflow.
	ProfileRefreshWorkflowName = "ProfileRefreshWorkflow"

	// ActivityFetchProfile resolves the session token and performs one profile call.
	ActivityFetchProfile = "FetchProfile"

	// ActivityPublishSignal publishes one signal to the event stream.
	ActivityPublishSignal = "PublishSignal"

	// ActivityRecordOutcome persists how one attempt ended.
	ActivityRecordOutcome = "RecordOutcome"

	// QueryRefreshStatus returns the RefreshStatus of a running workflow.
	QueryRefreshStatus = "refresh_status"
)
