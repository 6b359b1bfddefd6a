package entities

import "testing"

func TestFormatAndParseReceipt(t *testing.T) {
	cases := []struct {
		circuit  int64
		sequence int
		want     string
	}{
		{1, 1, "C001-00001"},
		{3, 2, "C003-00002"},
		{42, 12345, "C042-12345"},
		{1234, 7, "C1234-00007"},
	}
	for _, tc := range cases {
		got := FormatReceipt(tc.circuit, tc.sequence)
		if got != tc.want {
			t.Fatalf("FormatReceipt(%d, %d) = %s, want %s", tc.circuit, tc.sequence, got, tc.want)
		}
		circuit, sequence, ok := ParseReceipt(got)
		if !ok || circuit != tc.circuit || sequence != tc.sequence {
			t.Fatalf("ParseReceipt(%s) = %d, %d, %v", got, circuit, sequence, ok)
		}
	}
	for _, bad := range []string{"", "001-00001", "C001", "Cx-00001", "C001-0", "C000-00001"} {
		if _, _, ok := ParseReceipt(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestParseDecisionAliases(t *testing.T) {
	for raw, want := range map[string]Decision{
		"approve":   DecisionApprove,
		" Validar ": DecisionApprove,
		"APPROVED":  DecisionApprove,
		"reject":    DecisionReject,
		"rechazar":  DecisionReject,
	} {
		got, ok := ParseDecision(raw)
		if !ok || got != want {
			t.Fatalf("ParseDecision(%q) = %q, %v", raw, got, ok)
		}
	}
	if _, ok := ParseDecision("pending"); ok {
		t.Fatalf("pending is not a decision")
	}
	if DecisionApprove.TargetState() != ValidationApproved || DecisionReject.TargetState() != ValidationRejected {
		t.Fatalf("unexpected target states")
	}
}

func TestClassifySelector(t *testing.T) {
	candidate, nullified := ClassifySelector(SelectorBlank)
	if candidate != nil || nullified {
		t.Fatalf("blank selector misclassified")
	}
	candidate, nullified = ClassifySelector(SelectorNullified)
	if candidate != nil || !nullified {
		t.Fatalf("nullified selector misclassified")
	}
	candidate, nullified = ClassifySelector(7)
	if candidate == nil || *candidate != 7 || nullified {
		t.Fatalf("candidate selector misclassified")
	}

	blank := Ballot{}
	spoiled := Ballot{Nullified: true}
	valid := Ballot{CandidateID: candidate}
	if !blank.IsBlank() || spoiled.IsBlank() || valid.IsBlank() {
		t.Fatalf("IsBlank mismatch")
	}
	if !valid.IsValidVote() || spoiled.IsValidVote() {
		t.Fatalf("IsValidVote mismatch")
	}
}

func TestBuildTallyKeepsTotalsConsistent(t *testing.T) {
	roster := []HeadCandidate{
		{CandidateID: 1, Name: "Ana", PartyName: "Azul", ListNumber: 10},
		{CandidateID: 3, Name: "Marta", PartyName: "Rojo", ListNumber: 20},
		{CandidateID: 5, Name: "Pablo", PartyName: "Verde", ListNumber: 30},
	}
	counts := BallotCounts{
		ApprovedByCandidate: map[int64]int{1: 4, 3: 6, 99: 2},
		ApprovedBlank:       2,
		ApprovedNullified:   1,
		PendingObserved:     3,
	}
	result := BuildTally(roster, counts, 20)

	sum := 0
	for _, row := range result.PerCandidate {
		sum += row.Votes
	}
	if result.TotalApproved != sum+result.Blank+result.Nullified {
		t.Fatalf("total %d != %d + %d + %d", result.TotalApproved, sum, result.Blank, result.Nullified)
	}
	if result.TotalApproved != 13 {
		t.Fatalf("candidates outside the roster must not count, got %d", result.TotalApproved)
	}
	if len(result.PerCandidate) != 3 || result.PerCandidate[0].CandidateID != 3 || result.PerCandidate[2].Votes != 0 {
		t.Fatalf("unexpected ordering %+v", result.PerCandidate)
	}
	if result.Participation != 65 {
		t.Fatalf("expected participation 65, got %v", result.Participation)
	}
	if result.PendingObserved != 3 {
		t.Fatalf("expected 3 pending, got %d", result.PendingObserved)
	}
}

func TestParticipationRounding(t *testing.T) {
	if got := Participation(1, 3); got != 33.3 {
		t.Fatalf("expected 33.3, got %v", got)
	}
	if got := Participation(5, 0); got != 0 {
		t.Fatalf("expected 0 with no authorizations, got %v", got)
	}
}

func TestElectionSetupValid(t *testing.T) {
	valid := ElectionSetup{Year: 2024, Tickets: []Ticket{{PartyName: "Azul", ListNumber: 1, Head: "Ana"}}}
	if !valid.Valid() {
		t.Fatalf("expected valid setup")
	}
	duplicate := ElectionSetup{Year: 2024, Tickets: []Ticket{
		{PartyName: "Azul", ListNumber: 1, Head: "Ana"},
		{PartyName: "azul", ListNumber: 1, Head: "Otra"},
	}}
	if duplicate.Valid() {
		t.Fatalf("duplicate party list must be rejected")
	}
}

func TestBuildRoster(t *testing.T) {
	roster := BuildRoster([]CandidateListing{
		{Candidate: Candidate{CandidateID: 5, Name: "Pablo Ruiz", IsHead: true, ListNumber: 30}, PartyName: "Verde"},
		{Candidate: Candidate{CandidateID: 2, Name: "Luis Gomez", ListNumber: 10, ListOrder: 2}, PartyName: "Azul"},
		{Candidate: Candidate{CandidateID: 1, Name: "Ana Pereira", IsHead: true, ListNumber: 10, ListOrder: 1}, PartyName: "Azul"},
		{Candidate: Candidate{CandidateID: 7, Name: "Rosa Paz", IsHead: true, ListNumber: 4}, PartyName: "Azul"},
		{Candidate: Candidate{CandidateID: 9, Name: "Sin Cabeza", ListNumber: 99}, PartyName: "Gris"},
	})
	if len(roster) != 2 || roster[0].PartyName != "Azul" || roster[1].PartyName != "Verde" {
		t.Fatalf("unexpected parties %+v", roster)
	}
	azul := roster[0].Tickets
	if len(azul) != 2 || azul[0].ListNumber != 4 || azul[1].ListNumber != 10 {
		t.Fatalf("tickets must sort by list number, got %+v", azul)
	}
	if azul[1].HeadID != 1 || azul[1].RunningMateID != 2 || azul[1].RunningMateName != "Luis Gomez" {
		t.Fatalf("unexpected ticket %+v", azul[1])
	}
	if azul[0].RunningMateID != 0 || roster[1].Tickets[0].RunningMateName != "" {
		t.Fatalf("lists without running mate must leave it empty, got %+v", roster)
	}
}
