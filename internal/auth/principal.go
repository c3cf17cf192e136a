package auth

// Principal identifies the actor behind a core operation. It is passed down
// explicitly as an argument rather than read from ambient request state, and
// its name ends up in movement and decision audit columns.
type Principal struct {
	ManagerID int64
	Name      string
}

// System is the principal recorded for operations the process runs on its own
// behalf, such as sync imports.
var System = Principal{Name: "system"}
