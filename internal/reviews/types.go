package reviews

import "time"

const (
	DocKey     = "reviews"
	SchemaName = "reviews"
)

// Review is a rating left on a product. Reviews are never edited or deleted.
type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Author    string    `json:"author"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Date      time.Time `json:"date"`
}

// Summary aggregates the reviews of one product. Average is exact; Stars is
// the rounded value used for display.
type Summary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Stars   int     `json:"stars"`
}

type document struct {
	Reviews []Review `json:"reviews"` // newest first
}

func seedDoc() document {
	day := func(s string) time.Time {
		t, _ := time.Parse(time.DateOnly, s)
		return t
	}
	return document{Reviews: []Review{
		{ID: "r1", ProductID: "p1", Author: "Jessica M.", Rating: 5, Comment: "Absolutely obsessed! Not sticky at all.", Date: day("2024-02-15")},
		{ID: "r2", ProductID: "p1", Author: "Ashley K.", Rating: 4, Comment: "Great shine, wish it lasted a bit longer.", Date: day("2024-02-10")},
		{ID: "r3", ProductID: "p4", Author: "Maria R.", Rating: 5, Comment: "The color pay off is insane. Love it.", Date: day("2024-02-18")},
		{ID: "r4", ProductID: "p2", Author: "Sofia L.", Rating: 5, Comment: "My everyday go-to. Looks so natural.", Date: day("2024-02-20")},
	}}
}
