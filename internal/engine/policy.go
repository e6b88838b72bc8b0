package engine

// HasDiverged reports whether two content hashes disagree. An empty
// hash on either side counts as divergence: without a checksum the
// engine cannot prove the copies match, so it uploads.
func HasDiverged(localHash, remoteHash string) bool {
	return localHash != remoteHash
}

// ConflictPolicy picks the surviving content when the local and remote
// copies of a note have diverged.
type ConflictPolicy interface {
	Resolve(local, remote string) string
}

// PreferLonger keeps the longer of the two contents, on the guess that
// the longer copy carries the more recent edits. It is a placeholder
// heuristic, not a merge policy.
//
// TODO: replace with last-write-wins once modifiedTime is plumbed
// through the remote listing.
type PreferLonger struct{}

// Resolve returns whichever content is longer, preferring local on a
// tie.
func (PreferLonger) Resolve(local, remote string) string {
	if len(remote) > len(local) {
		return remote
	}
	return local
}
