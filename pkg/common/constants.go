package common

const (
	// APINameTiingo identifies the upstream price API in the request log
	// used for quota accounting.
	APINameTiingo = "tiingo"

	// RedisKeyCheckerRunLock guards against two overlapping checker runs.
	RedisKeyCheckerRunLock = "checker:run_lock"

	// RedisKeyCheckerLastRun stores the JSON summary of the most recent
	// checker run for the status endpoint.
	RedisKeyCheckerLastRun = "checker:last_run"
)
