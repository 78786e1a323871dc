package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	Group   string `long:"group" description:"Stats group to use" default:"default"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Log debug output to stderr"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// keyArgs are the positional arguments naming one counter.
type keyArgs struct {
	Item string `positional-arg-name:"ITEM" description:"Item identifier" required:"yes"`
	Name string `positional-arg-name:"NAME" description:"Counter name, e.g. view" required:"yes"`
}

// RecordCommand counts one event for ITEM/NAME.
type RecordCommand struct {
	Type   string  `long:"type" description:"Dedup type from the group config; requires --client (default with --client: unique)"`
	Client string  `long:"client" description:"Client identifier used for dedup; without it the gate is skipped"`
	Args   keyArgs `positional-args:"yes"`

	globals *GlobalFlags
	version string
	rt      *runtime // injectable for testing; nil means open from config
}

// GetCommand prints the current snapshot or day-by-day history for ITEM/NAME.
type GetCommand struct {
	Date string  `long:"date" description:"Single day (YYYY-MM-DD)"`
	From string  `long:"from" description:"First day of range (YYYY-MM-DD)"`
	To   string  `long:"to" description:"Last day of range (YYYY-MM-DD, default today)"`
	Args keyArgs `positional-args:"yes"`

	globals *GlobalFlags
	version string
	rt      *runtime
}

// StatusCommand shows the group configuration and table statistics.
type StatusCommand struct {
	globals *GlobalFlags
	version string
	rt      *runtime
}
