// Package temporal runs the profile refresh as a durable Temporal workflow.
//
// The durable variant has the same observable behavior as the in-process
// refresher in package profile. Take-latest is realized through the workflow
// ID: there is one ID per session and starting a refresh terminates the one
// already running. The retry delay is a workflow timer, after which the
// workflow continues as new with the next attempt number.
//
// The package itself holds the client used by the server and the CLI, the
// shared input and query types, and the worker manager. Workflow and activity
// implementations live in the workflows and activities subpackages and are
// registered by name:
//
//	mgr, _ := temporal.NewWorkerManager(c, temporal.DefaultWorkerConfig(cfg.TaskQueue))
//	workflows.Register(mgr.Registrar(), acts)
//	_ = mgr.Start(ctx)
package temporal
