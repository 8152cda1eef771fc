package poll

import (
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/store"
)

// The transitions below take the state as an explicit store.KV and hold nothing between
// calls. Each one validates before it writes, so a rejected call has written nothing.
// Atomicity of the writes of a successful call is provided by the host (see lib/store).

// --------------------------------------------------------------------------
// Instantiate
// --------------------------------------------------------------------------

// Instantiate writes the configuration with the explicit admin, or the sender if no admin
// is given. Once a configuration exists, only its admin may instantiate again.
func Instantiate(kv store.KV, api Api, sender string, msg InstantiateMsg) (*Response, error) {
	admin := sender
	if msg.Admin != nil {
		admin = *msg.Admin
	}
	admin, err := api.AddrValidate(admin)
	if err != nil {
		return nil, err
	}

	current, err := configItem.MayLoad(kv)
	if err != nil {
		return nil, err
	}
	if current != nil && current.Admin != sender {
		return nil, fmt.Errorf("%w: only the admin can instantiate again", ErrUnauthorized)
	}

	if err := contractInfoItem.Save(kv, ContractInfo{Contract: ContractName, Version: ContractVersion}); err != nil {
		return nil, err
	}
	if err := configItem.Save(kv, Config{Admin: admin}); err != nil {
		return nil, err
	}

	return NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("admin", admin), nil
}

// --------------------------------------------------------------------------
// Execute
// --------------------------------------------------------------------------

// CreatePoll writes a new poll with all tallies at zero, replacing any poll with the same id.
func CreatePoll(kv store.KV, sender, pollID, question string, options []string) (*Response, error) {
	if len(options) > MaxOptions {
		return nil, fmt.Errorf("%w: %d given, at most %d allowed", ErrTooManyOptions, len(options), MaxOptions)
	}

	opts := make([]Option, len(options))
	for i, label := range options {
		opts[i] = Option{Label: label}
	}

	p := Poll{
		Creator:  sender,
		Question: question,
		Options:  opts,
	}
	if err := polls.Save(kv, pollID, p); err != nil {
		return nil, err
	}

	return NewResponse().
		AddAttribute("action", "create_poll").
		AddAttribute("poll_id", pollID), nil
}

// Vote records the ballot of sender for label and moves the sender's vote in the tallies.
// A revote takes the vote from the previously chosen option. The label is validated before
// anything is written.
func Vote(kv store.KV, sender, pollID, label string) (*Response, error) {
	p, err := polls.MayLoad(kv, pollID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrPollNotFound, pollID)
	}

	target := p.OptionIndex(label)
	if target < 0 {
		return nil, fmt.Errorf("%w: %q has no option %q", ErrOptionNotFound, pollID, label)
	}

	_, err = ballots.Update(kv, BallotKey{Voter: sender, PollID: pollID}, func(old *Ballot) (Ballot, error) {
		if old != nil {
			prev := p.OptionIndex(old.Option)
			if prev < 0 {
				return Ballot{}, brokenInvariant("poll %q: ballot of %q names option %q which is not in the poll", pollID, sender, old.Option)
			}
			if p.Options[prev].Tally == 0 {
				return Ballot{}, brokenInvariant("poll %q: option %q has a ballot of %q but a tally of zero", pollID, old.Option, sender)
			}
			p.Options[prev].Tally--
		}
		return Ballot{Option: label}, nil
	})
	if err != nil {
		return nil, err
	}

	p.Options[target].Tally++

	if err := polls.Save(kv, pollID, *p); err != nil {
		return nil, err
	}

	return NewResponse().
		AddAttribute("action", "vote").
		AddAttribute("poll_id", pollID).
		AddAttribute("option", label), nil
}

// brokenInvariant reports a ballot that does not match the tallies of its poll. This happens
// when a poll is created again under the id of a poll that already had votes. The transition
// fails as an internal error and writes nothing, the shard stays available.
func brokenInvariant(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	log.Errorf("broken tally invariant: %s", msg)
	return store.NewError(store.RetCInternalError, msg)
}

// DeletePoll is part of the command set but not available yet
func DeletePoll(store.KV, string, string) (*Response, error) {
	return nil, fmt.Errorf("%w: delete_poll", ErrNotImplemented)
}

// RevokeVote is part of the command set but not available yet
func RevokeVote(store.KV, string, string, string) (*Response, error) {
	return nil, fmt.Errorf("%w: revoke_vote", ErrNotImplemented)
}
