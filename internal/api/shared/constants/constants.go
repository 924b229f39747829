package constants

const (
	MAX_PAGE_SIZE               = 255
	DEFAULT_OFFSET              = 0
	DEFAULT_CONTRIBUTIONS_LIMIT = 20
	DEFAULT_LEADERBOARD_LIMIT   = 20
	DEFAULT_EVENTS_LIMIT        = 50

	// MAX_REPLAY_CHUNK_SIZE caps the chunk size an admin may request
	MAX_REPLAY_CHUNK_SIZE = 10000

	// LOOKUP_WORKERS bounds the concurrent store lookups of a single request
	LOOKUP_WORKERS = 8

	// DAY_SCAN_PAGE_SIZE is the page size used to load a whole day bucket
	DAY_SCAN_PAGE_SIZE = 1000
)
