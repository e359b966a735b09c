package domain

// DefaultQuote is shown until the user sets their own profile quote.
const DefaultQuote = "each task shapes who we become."

// Profile is the per-user customization document, independent of day records.
type Profile struct {
	PhotoURL string `json:"photoURL,omitempty"`
	Quote    string `json:"quote"`
}

// DefaultProfile returns the profile shown before any stored value exists.
func DefaultProfile() Profile {
	return Profile{Quote: DefaultQuote}
}

// ProfilePatch carries a partial profile update for a merge write. Nil fields
// are left untouched in the stored document.
type ProfilePatch struct {
	PhotoURL *string
	Quote    *string
}
