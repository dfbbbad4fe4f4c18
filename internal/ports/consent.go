package ports

// ConsentStore answers whether crash reporting has been opted into and, when
// it has, yields the stable client id recorded at opt-in.
type ConsentStore interface {
	// Granted reports whether consent is currently granted.
	Granted() bool

	// ClientID returns the reporting id, or "" without consent.
	ClientID() string
}
