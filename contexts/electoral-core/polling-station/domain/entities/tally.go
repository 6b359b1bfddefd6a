package entities

import (
	"math"
	"sort"
	"time"
)

// HeadCandidate is a tally row source: a ticket head with its party.
type HeadCandidate struct {
	CandidateID int64
	Name        string
	PartyName   string
	ListNumber  int
}

type CandidateCount struct {
	CandidateID int64
	Candidate   string
	Party       string
	ListNumber  int
	Votes       int
}

// BallotFilter scopes ballot counting. Zero values mean "no restriction".
type BallotFilter struct {
	ElectionID int64
	CircuitID  int64
	Department string
	CastSince  time.Time
}

// AuthorizationScope restricts authorization counting to a circuit or a
// department. Zero values mean "no restriction".
type AuthorizationScope struct {
	CircuitID  int64
	Department string
}

// BallotCounts is the raw grouped count of ballots matching a filter.
type BallotCounts struct {
	ApprovedByCandidate map[int64]int
	ApprovedBlank       int
	ApprovedNullified   int
	PendingObserved     int
}

type TallyResult struct {
	ElectionID      int64
	ElectionYear    int
	Department      string
	PerCandidate    []CandidateCount
	Blank           int
	Nullified       int
	TotalApproved   int
	TotalAuthorized int
	Participation   float64
	PendingObserved int
}

type CircuitTallyResult struct {
	Circuit CircuitRef
	TallyResult
}

// BuildTally folds grouped counts into the candidate roster. Only candidates
// in the roster contribute, so TotalApproved always equals the sum of the
// per-candidate rows plus blank and nullified.
func BuildTally(roster []HeadCandidate, counts BallotCounts, totalAuthorized int) TallyResult {
	rows := make([]CandidateCount, 0, len(roster))
	sum := 0
	for _, candidate := range roster {
		votes := counts.ApprovedByCandidate[candidate.CandidateID]
		sum += votes
		rows = append(rows, CandidateCount{
			CandidateID: candidate.CandidateID,
			Candidate:   candidate.Name,
			Party:       candidate.PartyName,
			ListNumber:  candidate.ListNumber,
			Votes:       votes,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Votes == rows[j].Votes {
			return rows[i].CandidateID < rows[j].CandidateID
		}
		return rows[i].Votes > rows[j].Votes
	})

	result := TallyResult{
		PerCandidate:    rows,
		Blank:           counts.ApprovedBlank,
		Nullified:       counts.ApprovedNullified,
		TotalApproved:   sum + counts.ApprovedBlank + counts.ApprovedNullified,
		TotalAuthorized: totalAuthorized,
		PendingObserved: counts.PendingObserved,
	}
	result.Participation = Participation(result.TotalApproved, totalAuthorized)
	return result
}

// Participation is approved/authorized as a percentage rounded to one
// decimal, zero when nobody is authorized.
func Participation(approved int, authorized int) float64 {
	if authorized <= 0 {
		return 0
	}
	value := float64(approved) / float64(authorized) * 100
	return math.Round(value*10) / 10
}
