package usage

import "github.com/goodtune/sitelimit/internal/storage"

// Category ids with special meaning.
const (
	CategoryProductivity  = "cat-1"
	CategoryCode          = "cat-2"
	CategorySocial        = "cat-3"
	CategoryEntertainment = "cat-4"
	CategoryUncategorized = "uncategorized"
)

// DefaultCategories apply when the user has not stored any categories.
var DefaultCategories = []storage.Category{
	{ID: CategoryProductivity, Name: "Productivity", Color: "#4a9eff", IsDefault: true},
	{ID: CategoryCode, Name: "Code", Color: "#50c878", IsDefault: true},
	{ID: CategorySocial, Name: "Social Media", Color: "#ff9500", IsDefault: true},
	{ID: CategoryEntertainment, Name: "Entertainment", Color: "#ff4444", IsDefault: true},
}

// Uncategorized collects time on domains without a category.
var Uncategorized = storage.Category{ID: CategoryUncategorized, Name: "Other", Color: "#666666"}

// DefaultDomainCategories maps well-known domains to a default category.
var DefaultDomainCategories = map[string]string{
	// Code
	"github.com":            CategoryCode,
	"gitlab.com":            CategoryCode,
	"bitbucket.org":         CategoryCode,
	"stackoverflow.com":     CategoryCode,
	"codepen.io":            CategoryCode,
	"replit.com":            CategoryCode,
	"codesandbox.io":        CategoryCode,
	"jsfiddle.net":          CategoryCode,
	"npmjs.com":             CategoryCode,
	"developer.mozilla.org": CategoryCode,

	// Productivity
	"notion.so":           CategoryProductivity,
	"trello.com":          CategoryProductivity,
	"asana.com":           CategoryProductivity,
	"monday.com":          CategoryProductivity,
	"linear.app":          CategoryProductivity,
	"figma.com":           CategoryProductivity,
	"docs.google.com":     CategoryProductivity,
	"sheets.google.com":   CategoryProductivity,
	"slides.google.com":   CategoryProductivity,
	"drive.google.com":    CategoryProductivity,
	"calendar.google.com": CategoryProductivity,
	"mail.google.com":     CategoryProductivity,
	"outlook.live.com":    CategoryProductivity,
	"slack.com":           CategoryProductivity,

	// Social Media
	"twitter.com":     CategorySocial,
	"x.com":           CategorySocial,
	"facebook.com":    CategorySocial,
	"instagram.com":   CategorySocial,
	"linkedin.com":    CategorySocial,
	"reddit.com":      CategorySocial,
	"tiktok.com":      CategorySocial,
	"threads.net":     CategorySocial,
	"mastodon.social": CategorySocial,

	// Entertainment
	"youtube.com":    CategoryEntertainment,
	"netflix.com":    CategoryEntertainment,
	"twitch.tv":      CategoryEntertainment,
	"hulu.com":       CategoryEntertainment,
	"disneyplus.com": CategoryEntertainment,
	"primevideo.com": CategoryEntertainment,
	"spotify.com":    CategoryEntertainment,
	"soundcloud.com": CategoryEntertainment,
}

// CategoryFor returns the explicit category of a limit, falling back to the
// built-in table. Empty means uncategorized.
func CategoryFor(domain string, limit *storage.SiteLimit) string {
	if limit != nil && limit.CategoryID != "" {
		return limit.CategoryID
	}
	return DefaultDomainCategories[domain]
}
