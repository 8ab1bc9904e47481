package catalog

import "github.com/shopspring/decimal"

// Seed returns the launch catalog used until an administrator edits it.
func Seed() []Product {
	return []Product{
		{
			ID:          "p1",
			Name:        "Crystal Clear",
			Price:       decimal.NewFromInt(18),
			Shade:       "Transparent High-Shine",
			Description: "The ultimate non-sticky clear gloss that delivers glass-like shine. Perfect for layering or wearing solo.",
			Image:       "https://picsum.photos/id/10/600/600",
			Hex:         "#F0F0F0",
		},
		{
			ID:          "p2",
			Name:        "Petal Soft",
			Price:       decimal.NewFromInt(20),
			Shade:       "Soft Dusty Pink",
			Description: "A romantic, everyday pink that mimics the natural flush of healthy lips.",
			Image:       "https://picsum.photos/id/106/600/600",
			Hex:         "#E8B4B8",
		},
		{
			ID:          "p3",
			Name:        "Sunset Blvd",
			Price:       decimal.NewFromInt(20),
			Shade:       "Warm Coral Peach",
			Description: "Infused with gold shimmer, this coral shade brings golden hour to your lips instantly.",
			Image:       "https://picsum.photos/id/111/600/600",
			Hex:         "#FA8072",
		},
		{
			ID:          "p4",
			Name:        "Berry Bite",
			Price:       decimal.NewFromInt(22),
			Shade:       "Deep Raspberry",
			Description: "A bold, jammy berry shade for when you want to make a statement without the heaviness of lipstick.",
			Image:       "https://picsum.photos/id/123/600/600",
			Hex:         "#9F2B68",
		},
		{
			ID:          "p5",
			Name:        "Cocoa Drizzle",
			Price:       decimal.NewFromInt(22),
			Shade:       "Rich Brown Nude",
			Description: "The 90s are back with this rich, chocolatey nude that suits all skin tones perfectly.",
			Image:       "https://picsum.photos/id/129/600/600",
			Hex:         "#5D4037",
		},
		{
			ID:          "p6",
			Name:        "Ruby Slippers",
			Price:       decimal.NewFromInt(24),
			Shade:       "Classic Red",
			Description: `A sheer, buildable red that gives that "just bitten" popsicle lip effect.`,
			Image:       "https://picsum.photos/id/139/600/600",
			Hex:         "#D32F2F",
		},
	}
}
