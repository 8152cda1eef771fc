package poll

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dPoll/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("poll")

// --------------------------------------------------------------------------
// Handler
// --------------------------------------------------------------------------

// handlerImpl decodes the wire format and dispatches to the transitions and queries.
// It is stateless and can be shared between stores.
type handlerImpl struct {
	api Api
}

// NewHandler returns the poll contract as a store.Handler
func NewHandler(api Api) store.Handler {
	return &handlerImpl{api: api}
}

func (h *handlerImpl) Apply(kv store.KV, raw []byte) ([]byte, error) {
	var cmd Command
	if err := strictUnmarshal(raw, &cmd); err != nil {
		countTransition("unknown", err)
		return nil, err
	}

	action, err := commandAction(cmd)
	if err != nil {
		countTransition("unknown", err)
		return nil, err
	}

	res, err := h.execute(kv, action, cmd)
	countTransition(action, err)
	if err != nil {
		log.Debugf("%s by %q rejected: %v", action, cmd.Sender, err)
		return nil, err
	}
	return json.Marshal(res)
}

func (h *handlerImpl) execute(kv store.KV, action string, cmd Command) (*Response, error) {
	sender, err := h.api.AddrValidate(cmd.Sender)
	if err != nil {
		return nil, err
	}

	if cmd.Instantiate != nil {
		return Instantiate(kv, h.api, sender, *cmd.Instantiate)
	}

	switch msg := cmd.Execute; action {
	case "create_poll":
		return CreatePoll(kv, sender, msg.CreatePoll.PollID, msg.CreatePoll.Question, msg.CreatePoll.Options)
	case "vote":
		return Vote(kv, sender, msg.Vote.PollID, msg.Vote.Vote)
	case "delete_poll":
		return DeletePoll(kv, sender, msg.DeletePoll.PollID)
	case "revoke_vote":
		return RevokeVote(kv, sender, msg.RevokeVote.PollID, msg.RevokeVote.Vote)
	default:
		return nil, fmt.Errorf("%w: unknown action %s", ErrInvalidMessage, action)
	}
}

func (h *handlerImpl) Lookup(kv store.KV, raw []byte) ([]byte, error) {
	var q QueryMsg
	if err := strictUnmarshal(raw, &q); err != nil {
		countQuery("unknown", err)
		return nil, err
	}

	name, err := queryName(q)
	if err != nil {
		countQuery("unknown", err)
		return nil, err
	}

	var res any
	switch name {
	case "all_polls":
		res, err = QueryAllPolls(kv)
	case "poll":
		res, err = QueryPoll(kv, q.Poll.PollID)
	case "vote":
		res, err = QueryVote(kv, h.api, q.Vote.Address, q.Vote.PollID)
	case "config_user":
		res, err = QueryConfigUser(kv)
	case "all_vote_user":
		res, err = QueryAllVoteUser(kv, q.AllVoteUser.Address)
	}

	countQuery(name, err)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

// --------------------------------------------------------------------------
// Wire format
// --------------------------------------------------------------------------

// strictUnmarshal rejects unknown fields, so a misspelled variant is not silently empty
func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrInvalidMessage)
	}
	return nil
}

// oneOf returns the name of the only set variant
func oneOf(union string, variants ...variant) (string, error) {
	name := ""
	for _, v := range variants {
		if !v.set {
			continue
		}
		if name != "" {
			return "", fmt.Errorf("%w: %s has more than one variant (%s, %s)", ErrInvalidMessage, union, name, v.name)
		}
		name = v.name
	}
	if name == "" {
		return "", fmt.Errorf("%w: %s has no variant", ErrInvalidMessage, union)
	}
	return name, nil
}

type variant struct {
	name string
	set  bool
}

// commandAction returns the action name of a command
func commandAction(cmd Command) (string, error) {
	top, err := oneOf("command",
		variant{"instantiate", cmd.Instantiate != nil},
		variant{"execute", cmd.Execute != nil},
	)
	if err != nil || top == "instantiate" {
		return top, err
	}
	return oneOf("execute",
		variant{"create_poll", cmd.Execute.CreatePoll != nil},
		variant{"vote", cmd.Execute.Vote != nil},
		variant{"delete_poll", cmd.Execute.DeletePoll != nil},
		variant{"revoke_vote", cmd.Execute.RevokeVote != nil},
	)
}

func queryName(q QueryMsg) (string, error) {
	return oneOf("query",
		variant{"all_polls", q.AllPolls != nil},
		variant{"poll", q.Poll != nil},
		variant{"vote", q.Vote != nil},
		variant{"config_user", q.ConfigUser != nil},
		variant{"all_vote_user", q.AllVoteUser != nil},
	)
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

func result(err error) string {
	if err != nil {
		return "rejected"
	}
	return "ok"
}

func countTransition(action string, err error) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dpoll_transitions_total{action=%q,result=%q}`, action, result(err))).Inc()
}

func countQuery(name string, err error) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dpoll_queries_total{query=%q,result=%q}`, name, result(err))).Inc()
}
