package domain

import "time"

// Post is an uploaded image with its caption, like counter and comment thread.
// The author fields are a snapshot taken at upload time.
type Post struct {
	ID             string
	UserID         string
	Username       string
	UserProfilePic string
	ImageURL       string
	Caption        string
	Likes          int
	Timestamp      time.Time
	Comments       []Comment
}

// Comment belongs to exactly one post and is never edited after creation.
type Comment struct {
	ID        string
	PostID    string
	UserID    string
	Username  string
	Text      string
	Timestamp time.Time
}

// Clone returns a deep copy of the post, including its comments.
func (p Post) Clone() Post {
	out := p
	out.Comments = make([]Comment, len(p.Comments))
	copy(out.Comments, p.Comments)
	return out
}
