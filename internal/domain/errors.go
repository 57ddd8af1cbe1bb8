package domain

import "errors"

// Validation and soft-rejection errors. The messages are shown to the user as-is.
var (
	ErrNoJourney       = errors.New("please create or select a journey first")
	ErrEmptyQuestion   = errors.New("question text is required")
	ErrEmptyReflection = errors.New("reflection text is required")
	ErrEmptyTopic      = errors.New("topic word is required")
	ErrForbiddenTopic  = errors.New("this topic cannot be explored")
	ErrAlreadyAsked    = errors.New("each exploration allows only one question; continue with the next exploration")
	ErrAnswerRecorded  = errors.New("answer already recorded")
	ErrNodeHidden      = errors.New("this exploration is not unlocked yet; finish the previous one first")
	ErrBadSnapshot     = errors.New("import data has an entry without an id")
	ErrNotFound        = errors.New("not found")
)

// IsValidation reports whether err is a user-correctable rejection rather than a failure
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrNoJourney, ErrEmptyQuestion, ErrEmptyReflection, ErrEmptyTopic,
		ErrForbiddenTopic, ErrAlreadyAsked, ErrAnswerRecorded, ErrNodeHidden,
		ErrBadSnapshot,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
