package models

// Question is one entry of the question bank, keyed by the board number
// it is asked for. Stored in postgres, not in the document store.
type Question struct {
	Number        int       `json:"number"`
	Text          string    `json:"text"`
	Options       [4]string `json:"options"`
	CorrectOption int       `json:"correct_option"` // index into Options
}
