package reply

import "errors"

var (
	ErrReviewRequired = errors.New("review text is required")
	ErrInvalidRating  = errors.New("rating must be an integer between 1 and 5")
)
