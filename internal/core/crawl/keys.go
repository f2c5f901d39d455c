package crawl

// Every piece of crawl state shares the a:<id>: key namespace so that one
// crawl's record, frontier, and sets can be found (and deleted) together.
// Workers rendezvous with the engine through these same keys.

const scanPattern = "a:*:info"

func infoKey(id string) string        { return "a:" + id + ":info" }
func frontierKey(id string) string    { return "a:" + id + ":q" }
func pendingKey(id string) string     { return "a:" + id + ":qp" }
func seenKey(id string) string        { return "a:" + id + ":seen" }
func scopeKey(id string) string       { return "a:" + id + ":scope" }
func browserKey(id string) string     { return "a:" + id + ":br" }
func browserDoneKey(id string) string { return "a:" + id + ":br:done" }
