// AngelaMos | 2026
// dto.go

package user

import (
	"time"
)

type GrantRecordResponse struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	EndTime   time.Time `json:"end_time"`
}

type UserResponse struct {
	ID           string                `json:"id"`
	Username     string                `json:"username"`
	IsVIP        bool                  `json:"is_vip"`
	VIPActive    bool                  `json:"vip_active"`
	VIPStartTime *time.Time            `json:"vip_start_time"`
	VIPEndTime   *time.Time            `json:"vip_end_time"`
	VIPHistory   []GrantRecordResponse `json:"vip_history"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

type UserListResponse struct {
	Users []UserResponse `json:"users"`
	Total int            `json:"total"`
}

// ToUserResponse never carries the password digest. is_vip is the live
// entitlement at now; vip_active is the stored flag, which stays set after
// the window ends.
func ToUserResponse(u *User, now time.Time) UserResponse {
	history := make([]GrantRecordResponse, 0, len(u.VIP.History))
	for _, g := range u.VIP.History {
		history = append(history, GrantRecordResponse{
			Action:    g.Action,
			Timestamp: g.Timestamp,
			EndTime:   g.EndTime,
		})
	}

	return UserResponse{
		ID:           u.ID,
		Username:     u.Username,
		IsVIP:        u.VIP.IsLive(now),
		VIPActive:    u.VIP.Active,
		VIPStartTime: u.VIP.StartTime,
		VIPEndTime:   u.VIP.EndTime,
		VIPHistory:   history,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func ToUserListResponse(users []User, now time.Time) UserListResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, ToUserResponse(&users[i], now))
	}
	return UserListResponse{Users: responses, Total: len(responses)}
}
