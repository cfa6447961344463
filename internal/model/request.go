package model

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type ResetRequest struct {
	Email string `json:"email"`
}

type ResetVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type ResetConsumeRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}
