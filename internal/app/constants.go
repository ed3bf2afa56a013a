package app

const (
	Name           = "joylink"
	SourceURL      = "https://git.skobk.in/skobkin/joylink"
	ConfigFilename = "config.json"
	DBFilename     = "joylink.db"
	LogFilename    = "joylink.log"
	// ReadingsRetention is how many persisted readings survive a startup prune.
	ReadingsRetention = 100_000
	writerQueueSize   = 512
	busCapacity       = 256
)
