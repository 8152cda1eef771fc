package poll

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// MaxOptions is the maximum number of options of a poll
	MaxOptions = 10

	// ContractName and ContractVersion are written to ContractInfo on instantiation
	ContractName    = "crates.io:poll-contracts"
	ContractVersion = "0.1.0"
)

// --------------------------------------------------------------------------
// Records
// --------------------------------------------------------------------------

// Config is the singleton configuration written by Instantiate
type Config struct {
	Admin string `json:"admin"`
}

// ContractInfo names the contract and version that created the state
type ContractInfo struct {
	Contract string `json:"contract"`
	Version  string `json:"version"`
}

// Option is one answer of a poll and the number of standing ballots naming it
type Option struct {
	Label string `json:"label"`
	Tally uint64 `json:"tally"`
}

// Poll is a question with an ordered list of options.
// The sum of all tallies equals the number of voters with a ballot for the poll.
type Poll struct {
	Creator  string   `json:"creator"`
	Question string   `json:"question"`
	Options  []Option `json:"options"`
}

// OptionIndex returns the index of the first option with the given label, or -1
func (p *Poll) OptionIndex(label string) int {
	for i, opt := range p.Options {
		if opt.Label == label {
			return i
		}
	}
	return -1
}

// TotalVotes returns the sum of all tallies
func (p *Poll) TotalVotes() uint64 {
	var total uint64
	for _, opt := range p.Options {
		total += opt.Tally
	}
	return total
}

// Ballot is the standing choice of one voter in one poll
type Ballot struct {
	Option string `json:"option"`
}

// BallotKey addresses the ballot of a voter in a poll
type BallotKey struct {
	Voter  string
	PollID string
}
