package poll

import (
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/store"
)

// QueryAllPolls returns all polls in ascending poll id order
func QueryAllPolls(kv store.KV) (AllPollsResponse, error) {
	res := AllPollsResponse{Polls: []PollEntry{}}
	err := polls.Range(kv, func(pollID string, p Poll) bool {
		res.Polls = append(res.Polls, PollEntry{PollID: pollID, Poll: p})
		return true
	})
	return res, err
}

// QueryPoll returns the poll, a missing poll is not an error
func QueryPoll(kv store.KV, pollID string) (PollResponse, error) {
	p, err := polls.MayLoad(kv, pollID)
	return PollResponse{Poll: p}, err
}

// QueryVote returns the ballot of address for the poll, a missing ballot is not an error
func QueryVote(kv store.KV, api Api, address, pollID string) (VoteResponse, error) {
	voter, err := api.AddrValidate(address)
	if err != nil {
		return VoteResponse{}, err
	}
	b, err := ballots.MayLoad(kv, BallotKey{Voter: voter, PollID: pollID})
	return VoteResponse{Vote: b}, err
}

// QueryConfigUser is part of the query set but not available yet
func QueryConfigUser(store.KV) (Config, error) {
	return Config{}, fmt.Errorf("%w: config_user", ErrNotImplemented)
}

// QueryAllVoteUser is part of the query set but not available yet
func QueryAllVoteUser(store.KV, string) (VoteResponse, error) {
	return VoteResponse{}, fmt.Errorf("%w: all_vote_user", ErrNotImplemented)
}
