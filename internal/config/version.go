package config

import "github.com/Masterminds/semver/v3"

// Version is the engine's semantic version. It is not reported in
// pg_settings or in the startup ParameterStatus messages, which carry a
// fixed server_version instead.
const Version = "0.1.0"

// MinClientVersionHint is the lowest client-reported tool version this
// server expects to interoperate with; clients below it still connect.
// AtLeastMinClientVersion compares against it; no other package calls it.
const MinClientVersionHint = "1.0.0"

// AtLeastMinClientVersion reports whether clientVersion parses as a
// semver at or above MinClientVersionHint. An unparsable clientVersion
// is treated as satisfying the hint rather than rejecting the connection
// over something this engine doesn't use for authentication.
func AtLeastMinClientVersion(clientVersion string) bool {
	cv, err := semver.NewVersion(clientVersion)
	if err != nil {
		return true
	}
	min := semver.MustParse(MinClientVersionHint)
	return !cv.LessThan(min)
}
