// Package identity implements canonical-identity assignment for the
// authorship-based author model: every paper appearance is its own node,
// and a weighted contextual score decides which nodes are the same person.
package identity

import (
	"fmt"
	"strings"

	"github.com/matsen/arxgraph/internal/graph"
)

// Scoring weights. Signals are independent and summed, clamped to 100.
const (
	coauthorOverlapManyPoints = 50 // two or more shared coauthors
	coauthorOverlapOnePoints  = 25 // exactly one shared coauthor

	affiliationExactPoints     = 30 // equal affiliation strings
	affiliationSubstringPoints = 20 // one affiliation contains the other
	affiliationAbsentPoints    = 15 // no affiliation data on either side

	categoryOverlapManyPoints = 20 // two or more shared categories
	categoryOverlapOnePoints  = 10 // exactly one shared category
)

// Decision thresholds on the summed score.
const (
	adoptThreshold     = 80
	tentativeThreshold = 60

	// SelfConfidence is recorded on self-canonical assignments.
	SelfConfidence = 100
)

// Score computes the identity confidence between two same-named author
// nodes, plus a reason string for the review queue. The peers are assumed
// to already share a normalised name.
func Score(a, b graph.AuthorRecord) (int, string) {
	var score int
	var reasons []string

	shared := intersectionSize(a.Coauthors, b.Coauthors)
	switch {
	case shared >= 2:
		score += coauthorOverlapManyPoints
		reasons = append(reasons, fmt.Sprintf("coauthors=%d", shared))
	case shared == 1:
		score += coauthorOverlapOnePoints
		reasons = append(reasons, "coauthors=1")
	}

	affA := strings.ToLower(strings.TrimSpace(a.Affiliation))
	affB := strings.ToLower(strings.TrimSpace(b.Affiliation))
	switch {
	case affA != "" && affA == affB:
		score += affiliationExactPoints
		reasons = append(reasons, "affiliation=exact")
	case affA != "" && affB != "" && (strings.Contains(affA, affB) || strings.Contains(affB, affA)):
		score += affiliationSubstringPoints
		reasons = append(reasons, "affiliation=substring")
	case affA == "" && affB == "":
		score += affiliationAbsentPoints
		reasons = append(reasons, "affiliation=absent")
	case affA != "" && affB != "":
		// Two different affiliations on both sides: explicit zero, not
		// negative credit.
		reasons = append(reasons, "affiliation=different")
	}

	cats := intersectionSize(a.Categories, b.Categories)
	switch {
	case cats >= 2:
		score += categoryOverlapManyPoints
		reasons = append(reasons, fmt.Sprintf("categories=%d", cats))
	case cats == 1:
		score += categoryOverlapOnePoints
		reasons = append(reasons, "categories=1")
	}

	if score > 100 {
		score = 100
	}
	return score, strings.Join(reasons, ";")
}

// intersectionSize counts distinct shared items between two string sets.
func intersectionSize(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, item := range a {
		if item != "" {
			set[item] = true
		}
	}
	var n int
	counted := make(map[string]bool)
	for _, item := range b {
		if set[item] && !counted[item] {
			counted[item] = true
			n++
		}
	}
	return n
}

// bestPeer picks the highest-scoring peer. Ties prefer a peer that is
// already self-canonical, then the oldest created_at, then the smallest
// author_id, so repeated runs make the same choice.
func bestPeer(a graph.AuthorRecord, peers []graph.AuthorRecord) (graph.AuthorRecord, int, string) {
	var best graph.AuthorRecord
	bestScore := -1
	var bestReason string

	for _, peer := range peers {
		score, reason := Score(a, peer)
		if score > bestScore || (score == bestScore && preferPeer(peer, best)) {
			best = peer
			bestScore = score
			bestReason = reason
		}
	}
	return best, bestScore, bestReason
}

func preferPeer(candidate, incumbent graph.AuthorRecord) bool {
	if candidate.SelfCanonical() != incumbent.SelfCanonical() {
		return candidate.SelfCanonical()
	}
	if !candidate.CreatedAt.Equal(incumbent.CreatedAt) {
		return candidate.CreatedAt.Before(incumbent.CreatedAt)
	}
	return candidate.AuthorID < incumbent.AuthorID
}
