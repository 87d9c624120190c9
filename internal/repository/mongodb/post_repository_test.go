package mongodb

import (
	"testing"
	"time"

	"petgram/internal/domain"
)

func TestPostDocumentWithoutCommentsDecodesToEmptySlice(t *testing.T) {
	doc := postDocument{ID: "p1", Caption: "hi", Timestamp: time.Date(2023, 4, 15, 14, 30, 0, 0, time.UTC)}

	post := doc.toDomain()
	if post.Comments == nil || len(post.Comments) != 0 {
		t.Fatalf("comments = %#v, want empty non-nil slice", post.Comments)
	}
}

func TestCommentDocumentKeepsTextVerbatim(t *testing.T) {
	c := &domain.Comment{
		ID:        "c9",
		PostID:    "p1",
		UserID:    "2",
		Username:  "goodboy",
		Text:      `<img src=x onerror="alert(1)">`,
		Timestamp: time.Date(2023, 4, 15, 15, 0, 0, 0, time.FixedZone("X", 3600)),
	}

	doc := toCommentDocument(c)
	if doc.Text != c.Text {
		t.Fatalf("text = %q, want %q", doc.Text, c.Text)
	}
	if doc.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp not normalized to UTC: %v", doc.Timestamp)
	}
}
