// Package temporal provides Temporal workflow integration for the travel
// data service.
//
// This package handles workflow client initialization, workflow/activity
// registration, and worker lifecycle management.
//
// # Client Setup
//
// Create a Temporal client:
//
//	cfg := temporal.ClientConfig{
//	    HostPort:  "localhost:7233",
//	    Namespace: "travel-data",
//	    TaskQueue: "collection-tasks",
//	}
//
//	client, err := temporal.NewClient(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// # Starting Workflows
//
// Start a collection workflow through the wrapper:
//
//	wc := temporal.NewCollectionWorkflowClient(client, cfg.TaskQueue)
//	workflowID, runID, err := wc.StartCollectionWorkflow(ctx, temporal.CollectionWorkflowRequest{
//	    TaskID:   taskID,
//	    CityName: "杭州",
//	    DataType: "general",
//	}, workflows.CollectionWorkflow, input)
//
// Workflow IDs are deterministic ("collection-<taskID>"), so a duplicate
// start for the same task is rejected as already started.
//
// # Worker Setup
//
//	mgr, err := temporal.NewWorkerManager(client, temporal.DefaultWorkerConfig("collection-tasks"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mgr.RegisterWorkflow(workflows.CollectionWorkflow)
//	mgr.RegisterActivity(cozeActivities)
//	mgr.RegisterActivity(statusActivities)
//
//	if err := mgr.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Activity Types
//
// Activities are grouped by responsibility:
//
//   - Coze activities: the external workflow call with retries
//   - Parse activities: content normalization into records
//   - Status activities: task state updates and step logging
//   - Save activities: review row creation and classified saves
//   - Event activities: lifecycle event publishing
//
// # Error Handling
//
// Client operations wrap SDK errors into TemporalError with sentinel kinds:
//
//	if temporal.IsWorkflowNotFound(err) {
//	    // Workflow doesn't exist or already completed
//	}
//
//	if temporal.IsWorkflowAlreadyStarted(err) {
//	    // Workflow with same ID is already running
//	}
//
// # Thread Safety
//
// The Temporal client is safe for concurrent use. Workers manage their
// own goroutines for activity execution.
package temporal
