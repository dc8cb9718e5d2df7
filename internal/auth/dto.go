// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type AuthResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type EntitlementResponse struct {
	IsVIP      bool       `json:"is_vip"`
	VIPActive  bool       `json:"vip_active"`
	VIPEndTime *time.Time `json:"vip_end_time"`
}

type VIPDetails struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type GrantResponse struct {
	Message    string     `json:"message"`
	VIPDetails VIPDetails `json:"vip_details"`
}
