package domain

// Quote is one entry of the shared motivational quote catalog.
type Quote struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

// DailyPick is the quote chosen for one user on one date. Persisting the pick
// keeps it stable for the rest of the day.
type DailyPick struct {
	UserID string `json:"userId"`
	Date   string `json:"date"`
	Text   string `json:"text"`
	Author string `json:"author"`
}
