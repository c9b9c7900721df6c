package reply

import (
	"fmt"
	"strconv"
	"strings"
)

// Payload carries one staged review and the identifiers needed to publish a
// reply for it on the external platform.
type Payload struct {
	Review     string `json:"review"`
	Reviewer   string `json:"reviewer,omitempty"`
	ReviewedAt string `json:"reviewed_at,omitempty"`
	Rating     *int   `json:"rating,omitempty"`

	AccountID  string `json:"accountId,omitempty"`
	LocationID string `json:"locationId,omitempty"`
	ReviewID   string `json:"reviewId,omitempty"`

	StoreCode     string `json:"storeCode,omitempty"`
	LocationTitle string `json:"locationTitle,omitempty"`

	MapsURI      string `json:"maps_uri,omitempty"`
	NewReviewURI string `json:"new_review_uri,omitempty"`
	PlaceID      string `json:"place_id,omitempty"`
	MapsPlaceURL string `json:"maps_place_url,omitempty"`
}

// PayloadInput is the wire shape of a staging call. Upstream senders disagree
// on casing for the platform identifiers, so both spellings are accepted here
// and mapped onto the canonical fields exactly once.
type PayloadInput struct {
	Review     string `json:"review"`
	Reviewer   string `json:"reviewer"`
	ReviewedAt string `json:"reviewed_at"`
	Rating     any    `json:"rating"`

	AccountID       string `json:"accountId"`
	AccountIDSnake  string `json:"account_id"`
	LocationID      string `json:"locationId"`
	LocationIDSnake string `json:"location_id"`
	ReviewID        string `json:"reviewId"`
	ReviewIDSnake   string `json:"review_id"`

	StoreCode     string `json:"storeCode"`
	LocationTitle string `json:"locationTitle"`

	MapsURI      string `json:"maps_uri"`
	NewReviewURI string `json:"new_review_uri"`
	PlaceID      string `json:"place_id"`
	MapsPlaceURL string `json:"maps_place_url"`
}

// Normalize maps aliases onto canonical fields and validates the rating.
func (in PayloadInput) Normalize() (Payload, error) {
	if strings.TrimSpace(in.Review) == "" {
		return Payload{}, ErrReviewRequired
	}

	rating, err := coerceRating(in.Rating)
	if err != nil {
		return Payload{}, err
	}

	return Payload{
		Review:     strings.TrimSpace(in.Review),
		Reviewer:   strings.TrimSpace(in.Reviewer),
		ReviewedAt: strings.TrimSpace(in.ReviewedAt),
		Rating:     rating,

		AccountID:  firstNonBlank(in.AccountID, in.AccountIDSnake),
		LocationID: firstNonBlank(in.LocationID, in.LocationIDSnake),
		ReviewID:   firstNonBlank(in.ReviewID, in.ReviewIDSnake),

		StoreCode:     strings.TrimSpace(in.StoreCode),
		LocationTitle: strings.TrimSpace(in.LocationTitle),

		MapsURI:      strings.TrimSpace(in.MapsURI),
		NewReviewURI: strings.TrimSpace(in.NewReviewURI),
		PlaceID:      strings.TrimSpace(in.PlaceID),
		MapsPlaceURL: strings.TrimSpace(in.MapsPlaceURL),
	}, nil
}

// MissingPublishFields lists the platform identifiers still absent or blank.
// Publishing needs all three.
func (p Payload) MissingPublishFields() []string {
	missing := make([]string, 0, 3)
	for _, field := range []struct {
		name  string
		value string
	}{
		{"accountId", p.AccountID},
		{"locationId", p.LocationID},
		{"reviewId", p.ReviewID},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

func (p Payload) PublishReady() bool {
	return len(p.MissingPublishFields()) == 0
}

// RatingString renders the rating for the prompt fields map; absent is "".
func (p Payload) RatingString() string {
	if p.Rating == nil {
		return ""
	}
	return strconv.Itoa(*p.Rating)
}

// coerceRating accepts the rating as JSON number, numeric string, or absent.
// Absence is distinct from zero: an empty value yields a nil rating, never 0.
func coerceRating(v any) (*int, error) {
	var n int
	switch value := v.(type) {
	case nil:
		return nil, nil
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return nil, nil
		}
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRating, value)
		}
		n = parsed
	case float64:
		n = int(value)
		if float64(n) != value {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRating, value)
		}
	case int:
		n = value
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidRating, v)
	}

	if n < 1 || n > 5 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, n)
	}
	return &n, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
