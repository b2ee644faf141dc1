package suggest

import "context"

// Profile describes the player asking for recommendations.
type Profile struct {
	ExperienceLevel     string   `json:"experience_level" validate:"required,oneof=beginner casual moderate hardcore"`
	WeeklyHours         int      `json:"weekly_hours" validate:"gte=1,lte=60"`
	Purposes            []string `json:"purposes" validate:"min=1"`
	GenrePreferences    []string `json:"genre_preferences" validate:"min=1"`
	Devices             []string `json:"devices" validate:"min=1"`
	PlatformPreferences []string `json:"platform_preferences"`
	AgePreference       string   `json:"age_preference"`
	FavoriteGames       []string `json:"favorite_games"`
}

// Suggestion is one model-proposed title before catalog enrichment.
type Suggestion struct {
	Name   string `json:"name"`    // localized display name
	NameEN string `json:"name_en"` // canonical English name used for catalog search
	Reason string `json:"reason"`  // one-sentence personalized justification
}

// Source produces suggestions for a profile.
type Source interface {
	Suggest(ctx context.Context, p Profile) ([]Suggestion, error)
}
