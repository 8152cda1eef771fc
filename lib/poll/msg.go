package poll

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

// Command is the payload of store.IStore.Apply. Exactly one of Instantiate and Execute is set.
type Command struct {
	Sender      string          `json:"sender"`
	Instantiate *InstantiateMsg `json:"instantiate,omitempty"`
	Execute     *ExecuteMsg     `json:"execute,omitempty"`
}

// InstantiateMsg sets up the contract. Without Admin the sender becomes admin.
type InstantiateMsg struct {
	Admin *string `json:"admin,omitempty"`
}

// ExecuteMsg is a tagged union, exactly one variant is set
type ExecuteMsg struct {
	CreatePoll *CreatePollMsg `json:"create_poll,omitempty"`
	Vote       *VoteMsg       `json:"vote,omitempty"`
	DeletePoll *DeletePollMsg `json:"delete_poll,omitempty"`
	RevokeVote *RevokeVoteMsg `json:"revoke_vote,omitempty"`
}

type CreatePollMsg struct {
	PollID   string   `json:"poll_id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type VoteMsg struct {
	PollID string `json:"poll_id"`
	Vote   string `json:"vote"`
}

type DeletePollMsg struct {
	PollID string `json:"poll_id"`
}

type RevokeVoteMsg struct {
	PollID string `json:"poll_id"`
	Vote   string `json:"vote"`
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// QueryMsg is the payload of store.IStore.Lookup, a tagged union with exactly one variant set
type QueryMsg struct {
	AllPolls    *AllPollsQuery    `json:"all_polls,omitempty"`
	Poll        *PollQuery        `json:"poll,omitempty"`
	Vote        *VoteQuery        `json:"vote,omitempty"`
	ConfigUser  *ConfigUserQuery  `json:"config_user,omitempty"`
	AllVoteUser *AllVoteUserQuery `json:"all_vote_user,omitempty"`
}

type AllPollsQuery struct{}

type PollQuery struct {
	PollID string `json:"poll_id"`
}

type VoteQuery struct {
	Address string `json:"address"`
	PollID  string `json:"poll_id"`
}

type ConfigUserQuery struct{}

type AllVoteUserQuery struct {
	Address string `json:"address"`
}

// --------------------------------------------------------------------------
// Responses
// --------------------------------------------------------------------------

// Attribute is one key/value pair of the event log of a command
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response is the result of a successful command
type Response struct {
	Attributes []Attribute `json:"attributes"`
}

func NewResponse() *Response {
	return &Response{Attributes: []Attribute{}}
}

// AddAttribute appends an attribute and returns the response for chaining
func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

// Attribute returns the value of the first attribute with the given key
func (r *Response) Attribute(key string) (string, bool) {
	for _, attr := range r.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// PollEntry is a poll together with its id
type PollEntry struct {
	PollID string `json:"poll_id"`
	Poll   Poll   `json:"poll"`
}

type AllPollsResponse struct {
	Polls []PollEntry `json:"polls"`
}

// PollResponse has a nil Poll if the poll does not exist
type PollResponse struct {
	Poll *Poll `json:"poll"`
}

// VoteResponse has a nil Vote if the voter has no ballot for the poll
type VoteResponse struct {
	Vote *Ballot `json:"vote"`
}
