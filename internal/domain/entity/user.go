package entity

import "time"

type User struct {
	ID       string `json:"id" firestore:"id"`
	Email    string `json:"email" firestore:"email"`
	Username string `json:"username" firestore:"username"`
	Role     string `json:"role" firestore:"role"`
	Status   string `json:"status" firestore:"status"`

	AvatarURL    string    `json:"avatar_url,omitempty" firestore:"avatarURL,omitempty"`
	LastSeen     time.Time `json:"last_seen" firestore:"lastSeen"`
	OnlineStatus string    `json:"online_status" firestore:"onlineStatus"`

	CreatedAt time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" firestore:"updatedAt"`
}
