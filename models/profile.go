package models

import "strings"

// Profile is the account data returned by the profile lookup
type Profile struct {
	Name         string   `json:"name"`
	ScreenName   string   `json:"screen_name"`
	CakeDay      string   `json:"cake_day"`
	CommentKarma int      `json:"comment_karma"`
	PostKarma    int      `json:"post_karma"`
	ListedCount  int      `json:"listed_count"`
	Verified     bool     `json:"verified"`
	IsBot        bool     `json:"is_bot"`
	Achievements []string `json:"achievements"`
	TrophyCase   []string `json:"trophy_case"`
	ProfileImage string   `json:"profile_image,omitempty"`
}

// ApplyDefaults fills the fields the lookup may omit. requested is the
// username the lookup was made for.
func (p *Profile) ApplyDefaults(requested string) {
	if strings.TrimSpace(p.ScreenName) == "" {
		p.ScreenName = requested
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = p.ScreenName
	}
	if p.Achievements == nil {
		p.Achievements = []string{}
	}
	if p.TrophyCase == nil {
		p.TrophyCase = []string{}
	}
}

// TotalKarma is post plus comment karma
func (p *Profile) TotalKarma() int {
	return p.PostKarma + p.CommentKarma
}
