package domain

// User is a profile that can author posts and comments.
type User struct {
	ID             string
	Username       string
	DisplayName    string
	ProfilePicture string
	Bio            string
}
