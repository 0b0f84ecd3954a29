package registry

import "github.com/hazyhaar/blockpage/pkg/blocks"

// defaults holds the factory of each built-in type. Every call allocates,
// so callers may mutate what they get.
var defaults = map[blocks.Type]func() blocks.Content{
	blocks.TypeHero: func() blocks.Content {
		return &blocks.HeroContent{
			Title:            "Welcome",
			Subtitle:         "Tell your visitors what you do in one sentence.",
			CallToActionText: "Get started",
			CallToActionLink: "#contact",
		}
	},
	blocks.TypeFeatures: func() blocks.Content {
		return &blocks.FeaturesContent{
			Title: "Why choose us",
			Items: []blocks.FeatureItem{
				{Icon: "bolt", Title: "Fast", Description: "Pages load in the blink of an eye."},
				{Icon: "shield", Title: "Reliable", Description: "Built to stay online."},
				{Icon: "heart", Title: "Friendly", Description: "Real people answer your questions."},
			},
		}
	},
	blocks.TypeText: func() blocks.Content {
		return &blocks.TextContent{Alignment: blocks.AlignLeft}
	},
	blocks.TypeImage: func() blocks.Content {
		return &blocks.ImageContent{}
	},
	blocks.TypeCTA: func() blocks.Content {
		return &blocks.CTAContent{
			Title:       "Ready to start?",
			Description: "Get in touch and we will answer within a day.",
			ButtonText:  "Contact us",
			ButtonLink:  "#contact",
		}
	},
	blocks.TypeProducts: func() blocks.Content {
		return &blocks.ProductsContent{Title: "Our products"}
	},
	blocks.TypeSolutions: func() blocks.Content {
		return &blocks.SolutionsContent{Title: "Our solutions"}
	},
	blocks.TypeTestimonials: func() blocks.Content {
		return &blocks.TestimonialsContent{
			Title: "What our customers say",
			Items: []blocks.Testimonial{{Quote: "", Author: ""}},
		}
	},
	blocks.TypeStats: func() blocks.Content {
		return &blocks.StatsContent{
			Title:   "In numbers",
			Entries: []blocks.StatEntry{{Value: "", Label: ""}},
		}
	},
	blocks.TypeContact: func() blocks.Content {
		return &blocks.ContactContent{
			Title:      "Contact us",
			SubmitText: "Send",
		}
	},
	blocks.TypeBlogCTA: func() blocks.Content {
		return &blocks.BlogCTAContent{
			Title:      "From the blog",
			ButtonText: "Read the blog",
			ButtonLink: "/blog",
		}
	},
}
