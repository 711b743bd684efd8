package models

// StagedSubmission is the single-slot record that carries a submission
// across a payment-provider redirect. It must be erased on every exit
// path of the return handler, otherwise a later unrelated attempt could
// pick up stale data.
type StagedSubmission struct {
	QuestionID    string `json:"question_id"`
	QuestionText  string `json:"question_text"`
	SpecialNumber int    `json:"special_number"`
}
