package types

// BFTQuorum returns the Byzantine quorum for n validators: the smallest
// integer strictly greater than 2n/3, i.e. 2f+1 when n = 3f+1. The same
// threshold gates both the prevote lock and the precommit commit.
func BFTQuorum(n int) int {
	return n*2/3 + 1
}

// MaxFaulty returns the number of faulty validators tolerated by a set of n.
func MaxFaulty(n int) int {
	return (n - 1) / 3
}
