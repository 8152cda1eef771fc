package poll

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/store"
)

// Client builds the wire messages of the poll contract and sends them to a store hosting
// the handler returned by NewHandler. Every command is sent with the client's sender.
//
// Rejections are returned as errors wrapping the sentinels of this package, independent
// of the store in between (local, replicated or remote).
type Client struct {
	store  store.IStore
	sender string
}

// NewClient returns a client sending commands on behalf of sender
func NewClient(s store.IStore, sender string) *Client {
	return &Client{store: s, sender: sender}
}

// As returns a client for the same store with a different sender
func (c *Client) As(sender string) *Client {
	return &Client{store: c.store, sender: sender}
}

func (c *Client) Sender() string {
	return c.sender
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

func (c *Client) apply(cmd Command) (*Response, error) {
	cmd.Sender = c.sender
	raw, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	data, err := c.store.Apply(raw)
	if err != nil {
		return nil, ParseError(err)
	}
	res := NewResponse()
	if err := json.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return res, nil
}

func (c *Client) execute(msg ExecuteMsg) (*Response, error) {
	return c.apply(Command{Execute: &msg})
}

// Instantiate sets up the contract. An empty admin makes the sender admin.
func (c *Client) Instantiate(admin string) (*Response, error) {
	msg := InstantiateMsg{}
	if admin != "" {
		msg.Admin = &admin
	}
	return c.apply(Command{Instantiate: &msg})
}

func (c *Client) CreatePoll(pollID, question string, options ...string) (*Response, error) {
	if options == nil {
		options = []string{}
	}
	return c.execute(ExecuteMsg{CreatePoll: &CreatePollMsg{PollID: pollID, Question: question, Options: options}})
}

func (c *Client) Vote(pollID, option string) (*Response, error) {
	return c.execute(ExecuteMsg{Vote: &VoteMsg{PollID: pollID, Vote: option}})
}

func (c *Client) DeletePoll(pollID string) (*Response, error) {
	return c.execute(ExecuteMsg{DeletePoll: &DeletePollMsg{PollID: pollID}})
}

func (c *Client) RevokeVote(pollID, option string) (*Response, error) {
	return c.execute(ExecuteMsg{RevokeVote: &RevokeVoteMsg{PollID: pollID, Vote: option}})
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// lookup sends q and decodes the result into R
func lookup[R any](c *Client, q QueryMsg) (R, error) {
	var res R
	raw, err := json.Marshal(q)
	if err != nil {
		return res, err
	}
	data, err := c.store.Lookup(raw)
	if err != nil {
		return res, ParseError(err)
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("decoding query result: %w", err)
	}
	return res, nil
}

func (c *Client) AllPolls() ([]PollEntry, error) {
	res, err := lookup[AllPollsResponse](c, QueryMsg{AllPolls: &AllPollsQuery{}})
	return res.Polls, err
}

// Poll returns nil if the poll does not exist
func (c *Client) Poll(pollID string) (*Poll, error) {
	res, err := lookup[PollResponse](c, QueryMsg{Poll: &PollQuery{PollID: pollID}})
	return res.Poll, err
}

// Ballot returns the ballot of address for the poll, nil if there is none
func (c *Client) Ballot(address, pollID string) (*Ballot, error) {
	res, err := lookup[VoteResponse](c, QueryMsg{Vote: &VoteQuery{Address: address, PollID: pollID}})
	return res.Vote, err
}

func (c *Client) ConfigUser() (Config, error) {
	return lookup[Config](c, QueryMsg{ConfigUser: &ConfigUserQuery{}})
}

func (c *Client) AllVoteUser(address string) (VoteResponse, error) {
	return lookup[VoteResponse](c, QueryMsg{AllVoteUser: &AllVoteUserQuery{Address: address}})
}
