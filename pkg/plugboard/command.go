package plugboard

// Command is one discrete application operation with its options.
// Commands are produced by [Parse] from the command line and routed by
// [Main] to the matching method on [App].
type Command interface {
	// Name returns the CLI sub-command this command is routed from.
	Name() string
}

// MigrateCommand creates or updates the database schema for the
// configured backend. Safe to run repeatedly; it only adds missing
// tables, columns and indexes.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string {
	return "migrate"
}

// ServeCommand starts the HTTP editing service: the REST API over the
// placeholder store plus the websocket watch feed. The server runs
// until the context is cancelled or a fatal listen error occurs.
type ServeCommand struct{}

func (c *ServeCommand) Name() string {
	return "serve"
}
