package proto

import (
	"github.com/Masterminds/semver/v3"

	"github.com/CitroenGames/garden-framework-sub000/errors"
)

// CheckVersion enforces the wire-protocol compatibility gate: an exact
// uint32 match against ProtocolVersion. This is the only check that
// decides accept/reject.
func CheckVersion(clientVersion uint32) error {
	if clientVersion != ProtocolVersion {
		return errors.Newf("protocol version mismatch: client=%d server=%d", clientVersion, ProtocolVersion)
	}
	return nil
}

// BuildCompatibility reports a human-readable semver comparison between
// the client's reported build tag and this server's BuildTag, for
// diagnostics and logging only — it never participates in the
// accept/reject decision, which stays the plain version-number equality
// CheckVersion performs.
func BuildCompatibility(clientBuildTag string) string {
	serverVer, err := semver.NewVersion(BuildTag)
	if err != nil {
		return "unknown"
	}
	clientVer, err := semver.NewVersion(clientBuildTag)
	if err != nil {
		return "unparseable client build tag"
	}
	switch clientVer.Compare(serverVer) {
	case 0:
		return "exact match"
	case -1:
		return "client build older than server"
	default:
		return "client build newer than server"
	}
}
