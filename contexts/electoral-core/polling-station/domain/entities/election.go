package entities

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Election struct {
	ElectionID int64
	Year       int
	Name       string
	Active     bool
	CreatedAt  time.Time
}

type Establishment struct {
	EstablishmentID int64
	Name            string
	Department      string
	City            string
	Address         string
	Kind            string
	Accessible      bool
}

// Circuit is a polling place. Number is the external code printed on the
// ballot box; CircuitID is the stable internal identifier.
type Circuit struct {
	CircuitID       int64
	Number          string
	EstablishmentID int64
}

type CircuitRef struct {
	CircuitID         int64
	Number            string
	EstablishmentName string
	Department        string
	Address           string
}

const (
	defaultEstablishmentField = "Sin especificar"
	defaultEstablishmentKind  = "Escuela"
)

// ProvisionedEstablishment builds the minimal establishment created when an
// import references a circuit that does not exist yet.
func ProvisionedEstablishment(row RegistryImportRow) Establishment {
	name := strings.TrimSpace(row.EstablishmentName)
	if name == "" {
		name = fmt.Sprintf("Establecimiento %s", strings.TrimSpace(row.CircuitNumber))
	}
	return Establishment{
		Name:       name,
		Department: valueOrDefault(row.Department),
		City:       valueOrDefault(row.City),
		Address:    valueOrDefault(row.Address),
		Kind:       defaultEstablishmentKind,
		Accessible: true,
	}
}

func valueOrDefault(value string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return defaultEstablishmentField
}

type Party struct {
	PartyID int64
	Name    string
}

// Candidate belongs to one party ticket (ListNumber) of one election. Only
// the ticket head is a valid selector and is tallied.
type Candidate struct {
	CandidateID int64
	Name        string
	PartyID     int64
	ElectionID  int64
	IsHead      bool
	ListNumber  int
	ListOrder   int
}

// Ticket pairs a head candidate with a running mate under a party list.
type Ticket struct {
	PartyName   string
	ListNumber  int
	Head        string
	RunningMate string
}

// ElectionSetup is the administrative input that opens a new election.
type ElectionSetup struct {
	Year    int
	Name    string
	Tickets []Ticket
}

func (s ElectionSetup) Valid() bool {
	if s.Year <= 0 || len(s.Tickets) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(s.Tickets))
	for _, ticket := range s.Tickets {
		if strings.TrimSpace(ticket.PartyName) == "" || strings.TrimSpace(ticket.Head) == "" || ticket.ListNumber <= 0 {
			return false
		}
		key := fmt.Sprintf("%s/%d", strings.ToLower(strings.TrimSpace(ticket.PartyName)), ticket.ListNumber)
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
	}
	return true
}

// CandidateListing is a candidate joined with its party name.
type CandidateListing struct {
	Candidate
	PartyName string
}

// RosterTicket is one party list as shown to voters. RunningMateID is zero
// when the list has no running mate.
type RosterTicket struct {
	ListNumber      int
	HeadID          int64
	HeadName        string
	RunningMateID   int64
	RunningMateName string
}

type RosterParty struct {
	PartyName string
	Tickets   []RosterTicket
}

// BuildRoster groups candidates into party tickets. Parties sort by name and
// tickets by list number; a list without a head is left out.
func BuildRoster(items []CandidateListing) []RosterParty {
	type ticketKey struct {
		party      string
		listNumber int
	}
	tickets := make(map[ticketKey]*RosterTicket)
	for _, item := range items {
		key := ticketKey{party: item.PartyName, listNumber: item.ListNumber}
		ticket, ok := tickets[key]
		if !ok {
			ticket = &RosterTicket{ListNumber: item.ListNumber}
			tickets[key] = ticket
		}
		if item.IsHead {
			ticket.HeadID = item.CandidateID
			ticket.HeadName = item.Name
			continue
		}
		if ticket.RunningMateID == 0 {
			ticket.RunningMateID = item.CandidateID
			ticket.RunningMateName = item.Name
		}
	}

	byParty := make(map[string][]RosterTicket)
	for key, ticket := range tickets {
		if ticket.HeadID == 0 {
			continue
		}
		byParty[key.party] = append(byParty[key.party], *ticket)
	}
	parties := make([]RosterParty, 0, len(byParty))
	for name, list := range byParty {
		sort.Slice(list, func(i, j int) bool {
			return list[i].ListNumber < list[j].ListNumber
		})
		parties = append(parties, RosterParty{PartyName: name, Tickets: list})
	}
	sort.Slice(parties, func(i, j int) bool {
		return parties[i].PartyName < parties[j].PartyName
	})
	return parties
}
