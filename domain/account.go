package domain

// Account is an email/password credential record. ID is the opaque user
// identifier every other document is keyed by.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PhotoURL     string
	PasswordHash string
}
