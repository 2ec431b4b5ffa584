package config

const (
	// TopicIndexTask is the NSQ topic for re-index requests. Its consumer
	// handles one message at a time so index writes never overlap.
	TopicIndexTask = "index.task"

	// ChannelIndexWorker is the channel the index worker consumes from.
	ChannelIndexWorker = "index-worker"
)
