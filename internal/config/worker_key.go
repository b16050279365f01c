package config

type WorkerKeyStruct struct {
	PersistResultsQueue string
	// DeadResultsQueue holds results the worker gave up on, for manual replay.
	DeadResultsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistResultsQueue: "persist_results_queue",
	DeadResultsQueue:    "persist_results_dead",
}
