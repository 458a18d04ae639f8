package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API to manage background cache
// warming.
// Example usage:
//
//	scheduler := NewScheduler(configCache, sourceRepo, catalog)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.WarmSource("spilgames")
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	WarmSource(sourceName string) (string, error)
}
