package auth

// Principal is the authenticated OS user on behalf of whom work is
// performed (spec.md glossary). It is threaded explicitly through every
// component call — never recovered from ambient/global state.
type Principal struct {
	Username string
	UID      int
	GID      int
	Home     string
	IsAdmin  bool
}
