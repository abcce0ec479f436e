package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

// UserAgent is sent on every outbound crawl request. Tracking redirectors
// routinely refuse obvious bots, so it mimics a desktop browser.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const (
	DefaultMaxHops         = 10
	DefaultHopTimeout      = 15 * time.Second
	DefaultChainBudget     = 45 * time.Second
	DefaultResolveCacheTTL = 24 * time.Hour
)

const (
	CacheKeyPrefixResolve = "resolve:"
)

const (
	DefaultEventsTopic   = "attribution_events"
	DefaultCommandsTopic = "unwrap_commands"
)

const (
	DefaultBatchSize   = 100
	MaxBatchSize       = 1000
	DefaultConcurrency = 8
)

const (
	DefaultNewsletterMinLinks = 9
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	DefaultMongoDBName = "sift"
)
