package domain

import "time"

const (
	fluffycatPic    = "https://images.unsplash.com/photo-1514888286974-6c03e2ca1dba?ixlib=rb-1.2.1&ixid=eyJhcHBfaWQiOjEyMDd9&auto=format&fit=crop&w=500&q=60"
	goodboyPic      = "https://images.unsplash.com/photo-1561037404-61cd46aa615b?ixlib=rb-1.2.1&ixid=eyJhcHBfaWQiOjEyMDd9&auto=format&fit=crop&w=500&q=60"
	hamsterdancePic = "https://images.unsplash.com/photo-1425082661705-1834bfd09dca?ixlib=rb-1.2.1&ixid=eyJhcHBfaWQiOjEyMDd9&auto=format&fit=crop&w=500&q=60"
)

// SeedUsers returns the demo accounts every fresh store starts with.
func SeedUsers() []User {
	return []User{
		{
			ID:             "1",
			Username:       "fluffycat",
			DisplayName:    "Fluffy Cat",
			ProfilePicture: fluffycatPic,
			Bio:            "Just a fluffy cat living my best nine lives. Meow!",
		},
		{
			ID:             "2",
			Username:       "goodboy",
			DisplayName:    "Good Boy",
			ProfilePicture: goodboyPic,
			Bio:            "Woof! I chase balls and give lots of love.",
		},
		{
			ID:             "3",
			Username:       "hamsterdance",
			DisplayName:    "Hammy",
			ProfilePicture: hamsterdancePic,
			Bio:            "Small but mighty. I run on my wheel all night long!",
		},
	}
}

// SeedPosts returns the demo feed, most recent first.
func SeedPosts() []Post {
	return []Post{
		{
			ID:             "1",
			UserID:         "1",
			Username:       "fluffycat",
			UserProfilePic: fluffycatPic,
			ImageURL:       "https://images.unsplash.com/photo-1573865526739-10659fec78a5?ixlib=rb-1.2.1&ixid=eyJhcHBfaWQiOjEyMDd9&auto=format&fit=crop&w=500&q=60",
			Caption:        "Just lounging around today #lazycat #naptime",
			Likes:          42,
			Timestamp:      seedTime("2023-04-15T14:30:00Z"),
			Comments: []Comment{
				{ID: "c1", PostID: "1", UserID: "2", Username: "goodboy", Text: "Looking cozy!", Timestamp: seedTime("2023-04-15T15:00:00Z")},
			},
		},
		{
			ID:             "2",
			UserID:         "2",
			Username:       "goodboy",
			UserProfilePic: goodboyPic,
			ImageURL:       "https://images.unsplash.com/photo-1534361960057-19889db9621e?ixlib=rb-1.2.1&ixid=eyJhcHBfaWQiOjEyMDd9&auto=format&fit=crop&w=500&q=60",
			Caption:        "Beach day with my human! #beachdog #sunshine",
			Likes:          76,
			Timestamp:      seedTime("2023-04-14T10:15:00Z"),
			Comments:       []Comment{},
		},
		{
			ID:             "3",
			UserID:         "3",
			Username:       "hamsterdance",
			UserProfilePic: hamsterdancePic,
			ImageURL:       "https://images.unsplash.com/photo-1599153253655-d3427b700e3f?ixlib=rb-1.2.1&ixid=eyJhcHBfaWQiOjEyMDd9&auto=format&fit=crop&w=500&q=60",
			Caption:        "New toy day is the best day! #hamsterlife #wheel",
			Likes:          31,
			Timestamp:      seedTime("2023-04-13T18:45:00Z"),
			Comments: []Comment{
				{ID: "c2", PostID: "3", UserID: "1", Username: "fluffycat", Text: "So tiny and cute!", Timestamp: seedTime("2023-04-13T19:20:00Z")},
				{ID: "c3", PostID: "3", UserID: "2", Username: "goodboy", Text: "Looks fun!", Timestamp: seedTime("2023-04-14T08:10:00Z")},
			},
		},
	}
}

func seedTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		panic(err)
	}
	return t
}
