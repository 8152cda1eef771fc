/*
Package poll implements a voting contract as a store.Handler.

An admin instantiates the contract, any identity can then create polls with up to
MaxOptions options and vote on them. Every voter holds at most one ballot per poll. Voting
again moves the vote to the new option, so the tallies of a poll always sum up to the
number of voters with a ballot for it.

The package has three layers:

  - engine.go and query.go contain the transitions and queries. They work against a
    store.KV and validate everything before they write.
  - handler.go decodes the JSON wire format (msg.go) and dispatches to the transitions.
  - client.go builds the wire format and talks to any store.IStore.

State layout (all values are JSON):

	"config"                                  -> Config
	"contract_info"                           -> ContractInfo
	u16be(5) "polls"   poll_id                -> Poll
	u16be(7) "ballots" u16be(len(voter)) voter poll_id -> Ballot

Example:

	s := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, poll.NewHandler(poll.DefaultApi()))
	admin := poll.NewClient(s, "admin")
	_, _ = admin.Instantiate("")
	_, _ = admin.CreatePoll("lunch", "Where do we eat?", "pizza", "sushi")
	_, err := admin.As("alice").Vote("lunch", "pizza")
	if errors.Is(err, poll.ErrOptionNotFound) { ... }
*/
package poll
