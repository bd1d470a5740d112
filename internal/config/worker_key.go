package config

// WorkerKeyStruct names the Redis lists the persistence workers drain.
type WorkerKeyStruct struct {
	PersistCheatsQueue        string
	PersistSnapshotsQueue     string
	PersistResultsQueue       string
	PersistQuestionOrderQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistCheatsQueue:        "persist_cheats_queue",
	PersistSnapshotsQueue:     "persist_snapshots_queue",
	PersistResultsQueue:       "persist_results_queue",
	PersistQuestionOrderQueue: "persist_question_order_queue",
}

// NamedQueue pairs a short label with its Redis list key.
type NamedQueue struct {
	Name string
	Key  string
}

// Queues lists every persistence queue in a stable order.
func (k *WorkerKeyStruct) Queues() []NamedQueue {
	return []NamedQueue{
		{Name: "cheats", Key: k.PersistCheatsQueue},
		{Name: "snapshots", Key: k.PersistSnapshotsQueue},
		{Name: "results", Key: k.PersistResultsQueue},
		{Name: "question_order", Key: k.PersistQuestionOrderQueue},
	}
}
