// Package categorize assigns a job to a category by keyword scan.
package categorize

import "strings"

// Other is returned when no keyword matches.
const Other = "other"

type Category struct {
	Slug     string
	Name     string
	Keywords []string
}

// Categories is scanned in declaration order, and keywords within a category
// in declaration order. The first match wins.
var Categories = []Category{
	{
		Slug: "blue-collar",
		Name: "Blue Collar",
		Keywords: []string{
			"construction", "plumber", "plumbing", "electrician", "welder", "welding",
			"carpenter", "carpentry", "mechanic", "painter", "roofing", "roofer",
			"mason", "masonry", "hvac", "landscaping", "landscaper", "janitor",
			"custodian", "maintenance", "handyman", "laborer", "labour", "labor",
			"warehouse", "forklift", "factory", "assembly", "manufacturing",
		},
	},
	{
		Slug: "healthcare",
		Name: "Healthcare",
		Keywords: []string{
			"nurse", "nursing", "rn", "lpn", "cna", "medical", "healthcare",
			"health care", "hospital", "clinic", "dental", "dentist", "pharmacy",
			"pharmacist", "caregiver", "caregiving", "home health", "therapist",
			"therapy", "physician", "doctor", "emt", "paramedic",
		},
	},
	{
		Slug: "tech",
		Name: "Tech",
		Keywords: []string{
			"software", "developer", "engineer", "programming", "programmer",
			"frontend", "backend", "fullstack", "full-stack", "devops", "cloud",
			"data scientist", "data analyst", "machine learning", "ai ", "web developer",
			"mobile developer", "ios", "android", "react", "node", "python", "java",
			"it support", "cybersecurity", "network", "sysadmin", "database",
		},
	},
	{
		Slug: "sales-marketing",
		Name: "Sales & Marketing",
		Keywords: []string{
			"sales", "marketing", "advertising", "social media", "seo", "sem",
			"content writer", "copywriter", "brand", "account manager",
			"business development", "lead generation", "telemarketing",
			"real estate agent", "realtor", "insurance agent",
		},
	},
	{
		Slug: "food-hospitality",
		Name: "Food & Hospitality",
		Keywords: []string{
			"cook", "chef", "kitchen", "restaurant", "server", "waitress", "waiter",
			"bartender", "barista", "dishwasher", "food service", "catering",
			"hotel", "hospitality", "housekeeper", "housekeeping", "front desk",
		},
	},
	{
		Slug: "admin-office",
		Name: "Admin & Office",
		Keywords: []string{
			"admin", "administrative", "receptionist", "secretary", "office manager",
			"data entry", "clerk", "bookkeeper", "bookkeeping", "accounting",
			"accountant", "hr ", "human resources", "payroll", "customer service",
			"call center",
		},
	},
	{
		Slug: "education",
		Name: "Education",
		Keywords: []string{
			"teacher", "teaching", "tutor", "tutoring", "instructor", "professor",
			"education", "school", "daycare", "childcare", "nanny", "babysitter",
			"training", "trainer",
		},
	},
	{
		Slug: "transportation-logistics",
		Name: "Transportation & Logistics",
		Keywords: []string{
			"driver", "driving", "cdl", "truck", "delivery", "courier", "shipping",
			"logistics", "dispatcher", "freight", "moving", "mover", "uber", "lyft",
			"rideshare", "taxi", "bus driver",
		},
	},
}

// Categorize returns the slug of the first category with a keyword contained
// in the lower-cased title and description, or Other.
func Categorize(title, description string) string {
	return categorizeWith(Categories, title, description)
}

func categorizeWith(categories []Category, title, description string) string {
	text := strings.ToLower(title + " " + description)

	for _, cat := range categories {
		for _, keyword := range cat.Keywords {
			if strings.Contains(text, keyword) {
				return cat.Slug
			}
		}
	}

	return Other
}

// Name returns the display name for slug.
func Name(slug string) string {
	for _, cat := range Categories {
		if cat.Slug == slug {
			return cat.Name
		}
	}
	if slug == Other {
		return "Other"
	}
	return slug
}

// Count is a category with the number of jobs stored under it.
type Count struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summarize lists every declared category with its count and appends Other
// only when it has jobs.
func Summarize(counts map[string]int) ([]Count, int) {
	out := make([]Count, 0, len(Categories)+1)
	total := 0
	for _, cat := range Categories {
		out = append(out, Count{Slug: cat.Slug, Name: cat.Name, Count: counts[cat.Slug]})
	}
	for _, n := range counts {
		total += n
	}
	if n := counts[Other]; n > 0 {
		out = append(out, Count{Slug: Other, Name: Name(Other), Count: n})
	}
	return out, total
}
